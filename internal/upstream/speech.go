package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/chaisthra/vibetrack/internal/model"
)

// MaxAudioSize bounds uploaded recordings.
const MaxAudioSize = 25 << 20

var _ model.Transcriber = (*SpeechClient)(nil)

// SpeechClient calls an /audio/transcriptions endpoint.
type SpeechClient struct {
	client
}

// NewSpeechClient creates a transcription client.
func NewSpeechClient(cfg Config) *SpeechClient {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &SpeechClient{client: newClient("speech", cfg)}
}

// Transcribe uploads audio as multipart form data and returns the text.
func (c *SpeechClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if err := form.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	part, err := form.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(audio, MaxAudioSize+1))
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if n > MaxAudioSize {
		return "", fmt.Errorf("%w: audio exceeds %d bytes", model.ErrValidation, MaxAudioSize)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	body, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", form.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}

	text := gjson.GetBytes(body, "text")
	if !text.Exists() {
		return "", fmt.Errorf("%w: speech reply has no text", model.ErrUpstream)
	}
	return text.String(), nil
}
