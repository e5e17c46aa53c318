package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaisthra/vibetrack/internal/model"
)

func TestChatClient_Complete(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant","content":"{\"category\":\"Health\"}"}}]}`,
			want:   `{"category":"Health"}`,
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantErr: model.ErrUpstream,
		},
		{
			name:    "provider error",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"slow down"}}`,
			wantErr: model.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

				var req chatRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "test-model", req.Model)
				require.Len(t, req.Messages, 1)
				assert.Equal(t, "classify this", req.Messages[0].Content)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewChatClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "key", Model: "test-model", Timeout: time.Second})

			got, err := c.Complete(context.Background(), "classify this")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewChatClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := c.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, model.ErrUpstreamTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChatClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewChatClient(Config{BaseURL: url, Timeout: time.Second})

	_, err := c.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, model.ErrUpstream)
}

func TestSpeechClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "note.webm", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "audio-bytes", string(data))

		_, _ = w.Write([]byte(`{"text":"went for a run"}`))
	}))
	defer srv.Close()

	c := NewSpeechClient(Config{BaseURL: srv.URL, Timeout: time.Second})

	got, err := c.Transcribe(context.Background(), strings.NewReader("audio-bytes"), "/tmp/../note.webm")
	require.NoError(t, err)
	assert.Equal(t, "went for a run", got)
}

func TestSpeechClient_MissingText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewSpeechClient(Config{BaseURL: srv.URL, Timeout: time.Second})

	_, err := c.Transcribe(context.Background(), strings.NewReader("x"), "a.wav")
	assert.ErrorIs(t, err, model.ErrUpstream)
}

func TestDisabled(t *testing.T) {
	d := Disabled{Provider: "nlp"}

	_, err := d.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrUpstream)

	_, err = d.Transcribe(context.Background(), strings.NewReader("x"), "a.wav")
	assert.ErrorIs(t, err, model.ErrUpstream)
}
