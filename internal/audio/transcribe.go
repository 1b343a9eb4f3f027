package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"lojavox/internal/openai"
	"lojavox/pkg/logger"

	"go.uber.org/zap"
)

// DefaultPrompt primes the speech model with the expected domain
const DefaultPrompt = "Transcrição de relatório de supervisão de loja"

// TranscriptionRequest identifies the audio to transcribe
type TranscriptionRequest struct {
	AudioURL string `json:"audioUrl"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// Segment is one timed sub-span of the transcription, in chronological
// order but not necessarily contiguous.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the provider's response mapped verbatim
type TranscriptionResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// SpeechToText is the external speech provider
type SpeechToText interface {
	Configured() bool
	Transcribe(ctx context.Context, audio []byte, filename string, opts openai.TranscribeOptions) (*openai.Transcription, error)
}

type Transcriber struct {
	provider   SpeechToText
	httpClient *http.Client
}

func NewTranscriber(provider SpeechToText) *Transcriber {
	return &Transcriber{
		provider: provider,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Transcribe downloads the audio at req.AudioURL and sends it to the
// speech provider. Failures come back as *Failure with a stable code;
// there is no automatic retry.
//
// A failed download maps to INVALID_FORMAT regardless of cause: callers
// depend on "can't fetch" and "wrong format" being the same observable
// failure.
func (t *Transcriber) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResult, error) {
	if req.AudioURL == "" {
		return nil, serviceError("audio URL is empty", "")
	}
	if t.provider == nil || !t.provider.Configured() {
		return nil, serviceError("speech provider is not configured", "")
	}

	payload, ferr := t.download(ctx, req.AudioURL)
	if ferr != nil {
		return nil, ferr
	}

	if len(payload) > MaxAudioBytes {
		return nil, fileTooLarge(fmt.Sprintf("downloaded audio is %d bytes, limit is %d", len(payload), MaxAudioBytes))
	}

	language := req.Language
	if language == "" {
		language = "pt"
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	tr, err := t.provider.Transcribe(ctx, payload, filenameFromURL(req.AudioURL), openai.TranscribeOptions{
		Language: language,
		Prompt:   prompt,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return nil, invalidFormat("speech provider rejected the audio", apiErr.Body)
		}
		return nil, serviceError("speech provider call failed", err.Error())
	}

	logger.Info("Audio transcribed",
		zap.Int("text_length", len(tr.Text)),
		zap.Float64("duration", tr.Duration))

	result := &TranscriptionResult{
		Text:     tr.Text,
		Language: tr.Language,
		Duration: tr.Duration,
		Segments: make([]Segment, 0, len(tr.Segments)),
	}
	for _, seg := range tr.Segments {
		result.Segments = append(result.Segments, Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	return result, nil
}

func (t *Transcriber) download(ctx context.Context, audioURL string) ([]byte, *Failure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, invalidFormat("invalid audio URL", err.Error())
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, invalidFormat("failed to download audio", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, invalidFormat("failed to download audio", fmt.Sprintf("status=%d", resp.StatusCode))
	}

	// Read one byte past the cap so oversized payloads are detected
	// without buffering arbitrarily large bodies.
	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxAudioBytes+1))
	if err != nil {
		return nil, invalidFormat("failed to read audio payload", err.Error())
	}

	return payload, nil
}

func filenameFromURL(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil || path.Base(u.Path) == "." || path.Base(u.Path) == "/" {
		return "audio.webm"
	}
	name := path.Base(u.Path)
	if path.Ext(name) == "" {
		return name + ".webm"
	}
	return name
}
