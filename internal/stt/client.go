package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// apiKeyHeader carries the vendor secret on recognizer requests.
const apiKeyHeader = "X-CLOVASPEECH-API-KEY"

// Client sends transcoded audio to the vendor STT service. The HTTP client
// carries a bounded timeout; callers treat a timeout as retryable because it
// is not proof of a terminal vendor failure.
type Client struct {
	httpClient *http.Client
	invokeURL  string
	secret     string
	language   string
	logger     *zap.Logger
}

// ClientConfig holds vendor STT client settings.
type ClientConfig struct {
	InvokeURL  string
	Secret     string
	Language   string
	TimeoutSec int
}

// NewClient creates a vendor STT client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		invokeURL:  cfg.InvokeURL,
		secret:     cfg.Secret,
		language:   cfg.Language,
		logger:     logger,
	}
}

// recognizeResponse is the minimal vendor response contract: a list of
// utterance records under "segments". Record field names are not stable, so
// they stay loosely decoded for the normalizer.
type recognizeResponse struct {
	Segments []RawSegment `json:"segments"`
}

// Transcribe uploads the audio file at path and returns the vendor's raw
// utterance records in returned order.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]RawSegment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("media", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	params, _ := json.Marshal(map[string]any{
		"language":   c.language,
		"completion": "sync",
		"diarization": map[string]any{
			"enable": true,
		},
	})
	if err := mw.WriteField("params", string(params)); err != nil {
		return nil, fmt.Errorf("write params: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.invokeURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(apiKeyHeader, c.secret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("vendor status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber() // keep integer and float fields distinguishable
	var out recognizeResponse
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode vendor response: %w", err)
	}

	c.logger.Debug("vendor transcription returned",
		zap.Int("segments", len(out.Segments)),
		zap.Duration("took", time.Since(start)),
	)
	return out.Segments, nil
}
