package model

import (
	"context"
	"io"
)

// Completer sends a prompt to a chat model and returns the reply text.
// Failures are reported as ErrUpstream or ErrUpstreamTimeout.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}
