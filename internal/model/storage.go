package model

import (
	"context"
	"io"
	"time"
)

// BackupSink receives compressed snapshot objects.
type BackupSink interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Exists(ctx context.Context, key string) (bool, error)
}

// BackupReport summarises one snapshot run.
type BackupReport struct {
	Prefix    string
	Files     int
	Bytes     int64
	StartedAt time.Time
	Duration  time.Duration
}
