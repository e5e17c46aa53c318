package upstream

import (
	"context"
	"fmt"
	"io"

	"github.com/chaisthra/vibetrack/internal/model"
)

// Disabled stands in for an unconfigured provider. Every call fails with
// model.ErrUpstream so callers take their degraded path.
type Disabled struct {
	Provider string
}

func (d Disabled) Complete(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: %s provider is not configured", model.ErrUpstream, d.Provider)
}

func (d Disabled) Transcribe(context.Context, io.Reader, string) (string, error) {
	return "", fmt.Errorf("%w: %s provider is not configured", model.ErrUpstream, d.Provider)
}
