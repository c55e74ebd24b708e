// Package lipsync turns a persona portrait plus speech into a talking-head
// video through the D-ID talks API. Every failure resolves to "no video".
package lipsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/apresai/summit/internal/observability"
)

const (
	defaultBaseURL      = "https://api.d-id.com"
	defaultPollInterval = 2 * time.Second
	defaultDeadline     = 60 * time.Second
	defaultTextVoice    = "en-IN-PrabhatNeural"
	maxScriptChars      = 500
)

// Talk statuses reported by the API.
const (
	StatusCreated  = "created"
	StatusStarted  = "started"
	StatusDone     = "done"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// ErrTalkFailed is returned when the provider reports error or rejected.
var ErrTalkFailed = errors.New("talk failed")

// Client talks to D-ID. The zero value is not usable; call New.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	deadline     time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	uploaded map[string]string // image path -> hosted URL
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithPolling overrides the poll interval and the wall-clock deadline.
func WithPolling(interval, deadline time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.deadline = deadline
	}
}

func New(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		deadline:     defaultDeadline,
		logger:       logger,
		uploaded:     map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Available() bool { return c.apiKey != "" }

type uploadResponse struct {
	URL string `json:"url"`
}

type talkScript struct {
	Type     string        `json:"type"`
	Input    string        `json:"input,omitempty"`
	AudioURL string        `json:"audio_url,omitempty"`
	Provider *talkProvider `json:"provider,omitempty"`
}

type talkProvider struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id"`
}

type talkRequest struct {
	SourceURL string     `json:"source_url"`
	Script    talkScript `json:"script"`
}

type talkResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

// UploadImage hosts a local portrait and returns its URL. Results are cached
// per path for the life of the client. A missing file fails without a
// network call.
func (c *Client) UploadImage(ctx context.Context, imagePath string) (string, error) {
	c.mu.Lock()
	if u, ok := c.uploaded[imagePath]; ok {
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	u, err := c.upload(ctx, "/images", "image", filepath.Base(imagePath), data)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.uploaded[imagePath] = u
	c.mu.Unlock()
	c.logger.Info("portrait uploaded", "path", imagePath, "url", u)
	return u, nil
}

// UploadAudio hosts synthesized speech and returns its URL.
func (c *Client) UploadAudio(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no audio to upload")
	}
	return c.upload(ctx, "/audios", "audio", filename, data)
}

func (c *Client) upload(ctx context.Context, path, field, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return "", fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("write %s part: %w", field, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("upload %s: %w", field, err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("upload %s: response contained no url", field)
	}
	return resp.URL, nil
}

// CreateTalk submits an audio-driven talk and returns its id.
func (c *Client) CreateTalk(ctx context.Context, sourceURL, audioURL string) (string, error) {
	return c.createTalk(ctx, talkRequest{
		SourceURL: sourceURL,
		Script:    talkScript{Type: "audio", AudioURL: audioURL},
	})
}

// CreateTextTalk submits a talk voiced by the provider's own Microsoft voice.
func (c *Client) CreateTextTalk(ctx context.Context, sourceURL, text, voiceID string) (string, error) {
	if voiceID == "" {
		voiceID = defaultTextVoice
	}
	return c.createTalk(ctx, talkRequest{
		SourceURL: sourceURL,
		Script: talkScript{
			Type:     "text",
			Input:    trimScript(text),
			Provider: &talkProvider{Type: "microsoft", VoiceID: voiceID},
		},
	})
}

func (c *Client) createTalk(ctx context.Context, body talkRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal talk: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/talks", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp talkResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("create talk: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create talk: response contained no id")
	}
	c.logger.Info("talk created", "talk_id", resp.ID, "status", resp.Status)
	return resp.ID, nil
}

// PollTalk waits for a talk to finish and returns the video URL. It gives up
// at the client's deadline. Transient poll errors are logged and retried on
// the next tick.
func (c *Client) PollTalk(ctx context.Context, talkID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.getTalk(ctx, talkID)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				c.logger.Warn("talk poll error", "talk_id", talkID, "error", err)
			}
		case resp.Status == StatusDone:
			if resp.ResultURL == "" {
				return "", fmt.Errorf("talk %s done without result_url", talkID)
			}
			return resp.ResultURL, nil
		case resp.Status == StatusError, resp.Status == StatusRejected:
			return "", fmt.Errorf("talk %s %s: %w", talkID, resp.Status, ErrTalkFailed)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("talk %s not ready after %s: %w", talkID, c.deadline, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) getTalk(ctx context.Context, talkID string) (talkResponse, error) {
	var resp talkResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/talks/"+talkID, nil)
	if err != nil {
		return resp, fmt.Errorf("create request: %w", err)
	}
	err = c.do(req, &resp)
	return resp, err
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("D-ID API error (status %d): %s", res.StatusCode, string(errBody))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Generate animates imagePath with the given speech. Portrait and audio are
// uploaded concurrently. It returns ("", false) on any failure.
func (c *Client) Generate(ctx context.Context, imagePath string, speech []byte, filename string) (string, bool) {
	if !c.Available() || imagePath == "" || len(speech) == 0 {
		return "", false
	}
	ctx, span := observability.Tracer().Start(ctx, "lipsync.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("audio.bytes", len(speech)))

	var sourceURL, audioURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := c.UploadImage(gctx, imagePath)
		sourceURL = u
		return err
	})
	g.Go(func() error {
		u, err := c.UploadAudio(gctx, speech, filename)
		audioURL = u
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("lip-sync upload failed", "image", imagePath, "error", err)
		return "", false
	}

	return c.finish(ctx, func() (string, error) { return c.CreateTalk(ctx, sourceURL, audioURL) })
}

// GenerateFromText animates imagePath with the provider's own voice reading
// text, trimmed to keep the video short.
func (c *Client) GenerateFromText(ctx context.Context, imagePath, text, voiceID string) (string, bool) {
	if !c.Available() || imagePath == "" || text == "" {
		return "", false
	}
	sourceURL, err := c.UploadImage(ctx, imagePath)
	if err != nil {
		c.logger.Warn("lip-sync upload failed", "image", imagePath, "error", err)
		return "", false
	}
	return c.finish(ctx, func() (string, error) { return c.CreateTextTalk(ctx, sourceURL, text, voiceID) })
}

func (c *Client) finish(ctx context.Context, create func() (string, error)) (string, bool) {
	talkID, err := create()
	if err != nil {
		c.logger.Warn("lip-sync submit failed", "error", err)
		return "", false
	}
	videoURL, err := c.PollTalk(ctx, talkID)
	if err != nil {
		c.logger.Warn("lip-sync did not complete", "talk_id", talkID, "error", err)
		return "", false
	}
	c.logger.Info("lip-sync video ready", "talk_id", talkID, "url", videoURL)
	return videoURL, true
}

func trimScript(text string) string {
	r := []rune(text)
	if len(r) <= maxScriptChars {
		return text
	}
	return string(r[:maxScriptChars-3]) + "..."
}
