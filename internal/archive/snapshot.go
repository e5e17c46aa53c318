// Package archive copies the credential and partition documents of the data
// root into a backup sink as zstd-compressed objects.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
)

// Snapshot prefixes look like backup_20250301T090000Z.
const prefixLayout = "20060102T150405Z"

// Only primaries are copied. Backup generations and staged temp files never
// match these patterns.
var documentPatterns = []string{
	"users/*.json",
	"partitions/*/partition.json",
}

// Snapshot is one configured backup job.
type Snapshot struct {
	root    string
	sink    model.BackupSink
	clock   clock.Clock
	logger  *logger.Logger
	encoder *zstd.Encoder
}

// NewSnapshot creates a job copying documents below root into sink.
func NewSnapshot(root string, sink model.BackupSink, clk clock.Clock, logger *logger.Logger) (*Snapshot, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Snapshot{
		root:    root,
		sink:    sink,
		clock:   clk,
		logger:  logger,
		encoder: enc,
	}, nil
}

// Run uploads every document under a fresh backup_<timestamp> prefix. A
// failed upload aborts the run; objects already uploaded stay in the sink.
func (s *Snapshot) Run(ctx context.Context) (model.BackupReport, error) {
	started := s.clock.Now().UTC()
	report := model.BackupReport{
		Prefix:    "backup_" + started.Format(prefixLayout),
		StartedAt: started,
	}

	docs, err := s.documents()
	if err != nil {
		return report, err
	}

	for _, rel := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return report, fmt.Errorf("failed to read %s: %w", rel, err)
		}

		compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
		key := path.Join(report.Prefix, rel) + ".zst"
		if err := s.sink.Upload(ctx, key, bytes.NewReader(compressed)); err != nil {
			return report, fmt.Errorf("failed to upload %s: %w", key, err)
		}

		report.Files++
		report.Bytes += int64(len(compressed))
	}

	report.Duration = s.clock.Now().Sub(started)
	s.logger.Info("Snapshot: backup completed",
		"prefix", report.Prefix,
		"files", report.Files,
		"bytes", report.Bytes)

	return report, nil
}

// documents lists slash-separated paths relative to root.
func (s *Snapshot) documents() ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range documentPatterns {
			if ok, _ := path.Match(pattern, rel); ok {
				out = append(out, rel)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return out, nil
}
