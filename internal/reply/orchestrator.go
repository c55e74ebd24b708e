package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/summit/internal/observability"
)

// Reply is the outcome of one generation attempt. When Degraded is set, Text
// holds the notice to show in place of persona output and Err the cause.
type Reply struct {
	Text     string
	Degraded bool
	Err      error
	Latency  time.Duration
}

// Orchestrator makes exactly one generation call per turn and fails closed.
type Orchestrator struct {
	gen Generator
	log *slog.Logger
}

func NewOrchestrator(gen Generator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Orchestrator{gen: gen, log: logger}
}

// Provider is the backend name, for logs and the health endpoint.
func (o *Orchestrator) Provider() string { return o.gen.Name() }

// GetReply asks the generator for the persona's next message. It never
// retries and never returns an error: failures become a degraded Reply.
// State is not touched; the caller appends turns and awards XP.
func (o *Orchestrator) GetReply(ctx context.Context, system string, history []Message, user string) Reply {
	return o.run(ctx, "reply.generate", func(ctx context.Context) (string, error) {
		return o.gen.Generate(ctx, system, withUser(history, user))
	})
}

// Stream behaves like GetReply but forwards text fragments as they arrive.
// Generators without streaming deliver the whole reply as a single chunk.
// Chunks already delivered before a failure must be discarded by the caller.
func (o *Orchestrator) Stream(ctx context.Context, system string, history []Message, user string, onChunk func(string)) Reply {
	sg, ok := o.gen.(StreamGenerator)
	if !ok {
		r := o.GetReply(ctx, system, history, user)
		if !r.Degraded && onChunk != nil {
			onChunk(r.Text)
		}
		return r
	}
	return o.run(ctx, "reply.stream", func(ctx context.Context) (string, error) {
		return sg.GenerateStream(ctx, system, withUser(history, user), onChunk)
	})
}

func (o *Orchestrator) run(ctx context.Context, spanName string, call func(context.Context) (string, error)) Reply {
	ctx, span := observability.Tracer().Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("reply.provider", o.gen.Name()))

	start := time.Now()
	text, err := call(ctx)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		o.log.ErrorContext(ctx, "Reply generation failed, degrading",
			"provider", o.gen.Name(),
			"reason", Classify(err),
			"latency_ms", latency.Milliseconds(),
			"error", err,
		)
		return Reply{Text: DegradedNotice(err), Degraded: true, Err: err, Latency: latency}
	}

	span.SetAttributes(attribute.Int("reply.chars", len(text)))
	o.log.DebugContext(ctx, "Reply generated", "provider", o.gen.Name(), "chars", len(text), "latency_ms", latency.Milliseconds())
	return Reply{Text: text, Latency: latency}
}

// Classify reduces a generation error to a short, credential-free reason.
func Classify(err error) string {
	var ne net.Error
	var ge *GenerationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "provider not configured"
	case errors.Is(err, ErrEmptyResponse):
		return "empty response"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.As(err, &ge) && ge.StatusCode != 0:
		return classifyStatus(ge.StatusCode)
	case errors.As(err, &ne) && ne.Timeout():
		return "request timed out"
	case errors.As(err, &ne):
		return "network error"
	default:
		return "provider error"
	}
}

func classifyStatus(code int) string {
	switch {
	case code == 401 || code == 403:
		return "authentication failed"
	case code == 429:
		return "rate limited"
	case code >= 500:
		return "provider unavailable"
	default:
		return fmt.Sprintf("request rejected (%d)", code)
	}
}

// DegradedNotice is the system-style transcript entry shown instead of a
// persona reply. It names the failure category and nothing more.
func DegradedNotice(err error) string {
	return fmt.Sprintf("*Connection issue (%s). The leader could not respond; please try again.*", Classify(err))
}

// statusOf pulls an HTTP status out of SDK errors that expose one, such as
// the AWS SDK's response errors.
func statusOf(err error) int {
	var sc interface{ HTTPStatusCode() int }
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}
