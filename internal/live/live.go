// Package live produces spoken replies through Gemini's native-audio Live
// model. A request runs as a Task with a hard deadline whose Outcome says
// whether it succeeded, timed out, or failed.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/summit/internal/audio"
	"github.com/apresai/summit/internal/observability"
	"github.com/apresai/summit/internal/reply"
)

// DefaultTimeout bounds a single Live exchange.
const DefaultTimeout = 20 * time.Second

// Outcome is how a Task ended.
type Outcome int

const (
	Succeeded Outcome = iota
	TimedOut
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Request is one Live exchange.
type Request struct {
	System  string
	History []reply.Message
	Message string
	Voice   string
}

// Exchange is the raw result of a Live session.
type Exchange struct {
	Text string // output transcription, may be empty
	PCM  []byte // 24 kHz 16-bit mono
}

// Dialer runs one Live exchange to completion. It must return promptly once
// ctx is done.
type Dialer interface {
	Exchange(ctx context.Context, req Request) (Exchange, error)
}

// Result is what a finished Task reports.
type Result struct {
	Outcome Outcome
	Text    string
	Audio   []byte // WAV; nil when no audio arrived
	Err     error
	Elapsed time.Duration
}

// OK reports a successful exchange that produced audio.
func (r Result) OK() bool { return r.Outcome == Succeeded && len(r.Audio) > 0 }

// Responder starts Live tasks.
type Responder struct {
	dialer  Dialer
	timeout time.Duration
	voice   string
	logger  *slog.Logger
}

func NewResponder(d Dialer, timeout time.Duration, defaultVoice string, logger *slog.Logger) *Responder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = observability.Discard()
	}
	return &Responder{dialer: d, timeout: timeout, voice: defaultVoice, logger: logger}
}

// Available reports whether a dialer is configured.
func (r *Responder) Available() bool { return r != nil && r.dialer != nil }

// Task is an in-flight Live exchange.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc
	result Result
}

// Start launches the exchange. The task keeps the caller's trace but not its
// cancellation; only the deadline or Cancel stops it.
func (r *Responder) Start(ctx context.Context, req Request) *Task {
	if req.Voice == "" {
		req.Voice = r.voice
	}
	taskCtx, cancel := context.WithTimeout(observability.DetachTraceContext(ctx), r.timeout)
	t := &Task{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(t.done)
		defer cancel()
		t.result = r.run(taskCtx, req)
	}()
	return t
}

// Wait blocks until the task finishes and returns its result.
func (t *Task) Wait() Result {
	<-t.done
	return t.result
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the task early. Wait then reports Cancelled.
func (t *Task) Cancel() { t.cancel() }

func (r *Responder) run(ctx context.Context, req Request) Result {
	ctx, span := observability.Tracer().Start(ctx, "live.Exchange")
	defer span.End()
	span.SetAttributes(attribute.String("live.voice", req.Voice))

	start := time.Now()
	if !r.Available() {
		return Result{Outcome: Failed, Err: errors.New("live voice not configured")}
	}

	ex, err := r.dialer.Exchange(ctx, req)
	res := Result{Elapsed: time.Since(start).Round(time.Millisecond)}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Outcome, res.Err = TimedOut, fmt.Errorf("live exchange exceeded %s: %w", r.timeout, ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		res.Outcome, res.Err = Cancelled, ctx.Err()
	case err != nil:
		res.Outcome, res.Err = Failed, err
	default:
		res.Outcome = Succeeded
		res.Text = strings.TrimSpace(ex.Text)
		if len(ex.PCM) > 0 {
			res.Audio = audio.WrapPCM(ex.PCM, audio.DefaultPCMRate)
		}
	}

	attrs := []any{"outcome", res.Outcome.String(), "elapsed", res.Elapsed, "audio_bytes", len(res.Audio)}
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
		r.logger.Warn("live exchange did not succeed", append(attrs, "error", res.Err)...)
	} else {
		r.logger.Info("live exchange complete", attrs...)
	}
	return res
}
