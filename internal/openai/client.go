package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"lojavox/pkg/logger"
	"lojavox/pkg/resilience"

	"go.uber.org/zap"
)

const (
	chatCompletionsPath = "/chat/completions"
	transcriptionsPath  = "/audio/transcriptions"
)

// APIError is a non-2xx provider response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai request failed: status=%d, body=%s", e.StatusCode, e.Body)
}

// Config holds the provider endpoint, credentials and model names
type Config struct {
	BaseURL            string
	APIKey             string
	ChatModel          string
	VisionModel        string
	TranscriptionModel string
}

// Configured reports whether the client has the minimum required
// configuration to reach the provider.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

type Client struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewClient creates a provider client. The circuit breaker fails chat
// calls fast while the provider is known to be down; individual calls
// are never retried.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second),
	}
}

// Configured reports whether the client can reach the provider
func (c *Client) Configured() bool { return c.cfg.Configured() }

// ChatModel returns the configured text model name
func (c *Client) ChatModel() string { return c.cfg.ChatModel }

// VisionModel returns the configured vision-capable model name
func (c *Client) VisionModel() string { return c.cfg.VisionModel }

// ChatCompletion issues one chat completion call
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.cfg.Configured() {
		return nil, fmt.Errorf("openai client is not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte
	err = c.breaker.Execute(func() error {
		var execErr error
		respBody, execErr = c.do(ctx, chatCompletionsPath, "application/json", bytes.NewReader(body))
		return execErr
	})
	if err != nil {
		return nil, err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Debug("Chat completion finished",
		zap.String("model", req.Model),
		zap.Int("choices", len(chatResp.Choices)))

	return &chatResp, nil
}

// Transcribe sends an audio payload to the speech-to-text endpoint and
// returns the verbose transcription.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string, opts TranscribeOptions) (*Transcription, error) {
	if !c.cfg.Configured() {
		return nil, fmt.Errorf("openai client is not configured")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio payload: %w", err)
	}

	fields := map[string]string{
		"model":           c.cfg.TranscriptionModel,
		"response_format": "verbose_json",
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if opts.Prompt != "" {
		fields["prompt"] = opts.Prompt
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	respBody, err := c.do(ctx, transcriptionsPath, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var tr Transcription
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcription: %w", err)
	}

	logger.Info("Transcription completed",
		zap.Float64("duration", tr.Duration),
		zap.Int("segments", len(tr.Segments)))

	return &tr, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
