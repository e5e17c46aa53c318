package filestore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/zeebo/blake3"

	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/metrics"
	"github.com/chaisthra/vibetrack/internal/model"
)

const (
	envelopeVersion = 1
	tempMarker      = ".tmp-"
	linkSuffix      = ".bak.link"

	defaultBackoff = 10 * time.Millisecond
)

// envelope wraps every document on disk. Checksum is the blake3 digest of
// the exact Payload bytes.
type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Options configures Files.
type Options struct {
	// Backups is the number of prior generations kept next to each
	// document. Values below 1 are raised to 1.
	Backups int
	// Retries is the number of additional attempts after a failed write.
	Retries uint64
	// Backoff is the constant delay between attempts. Zero selects a
	// small default.
	Backoff time.Duration
}

// Files reads and writes JSON documents with crash-safe replacement. A write
// is staged to a temporary file in the target directory, fsynced, the
// current version is linked into the backup chain, and the temporary file
// is renamed over the target. Readers never observe a partial document.
type Files struct {
	opts   Options
	logger *logger.Logger

	// beforeSwap runs after the staged file is durable and before any
	// rename. Tests use it to simulate a crash.
	beforeSwap func(path string) error
	// rename moves the staged file over the target.
	rename func(oldpath, newpath string) error
}

// NewFiles creates Files with the given options.
func NewFiles(opts Options, logger *logger.Logger) *Files {
	if opts.Backups < 1 {
		opts.Backups = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &Files{opts: opts, logger: logger, rename: os.Rename}
}

// WriteJSON atomically replaces the document at path with v. Failed
// attempts are retried; exhausted retries are reported as model.ErrStorage.
// Cancellation of ctx does not abandon a write once started.
func (f *Files) WriteJSON(ctx context.Context, path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	sum := blake3.Sum256(payload)
	data, err := json.Marshal(envelope{
		Version:  envelopeVersion,
		Checksum: hex.EncodeToString(sum[:]),
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	backoff := retry.WithMaxRetries(f.opts.Retries, retry.NewConstant(f.opts.Backoff))
	attempt := 0
	// The primary only changes on a successful swap, so the backup chain is
	// shifted at most once per write no matter how many attempts fail.
	rotated := false
	err = retry.Do(context.WithoutCancel(ctx), backoff, func(_ context.Context) error {
		attempt++
		if err := f.writeOnce(path, data, &rotated); err != nil {
			metrics.StorageWrite("retry")
			f.logger.Warn("Filestore: write attempt failed",
				"path", path,
				"attempt", attempt,
				"error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		metrics.StorageWrite("failed")
		return fmt.Errorf("%w: write %s: %v", model.ErrStorage, filepath.Base(path), err)
	}

	metrics.StorageWrite("ok")
	return nil
}

func (f *Files) writeOnce(path string, data []byte, rotated *bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+tempMarker+"*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", err)
	}

	if f.beforeSwap != nil {
		if err := f.beforeSwap(path); err != nil {
			os.Remove(tmpPath)
			return err
		}
	}

	if !*rotated {
		if err := f.rotateBackups(path); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("rotate backups: %w", err)
		}
		*rotated = true
	}

	if err := f.rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}

	syncDir(dir)
	return nil
}

// rotateBackups shifts .bak.N-1 -> .bak.N … and links the current version
// to .bak.1. The primary stays in place throughout.
func (f *Files) rotateBackups(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	for i := f.opts.Backups - 1; i >= 1; i-- {
		err := os.Rename(backupPath(path, i), backupPath(path, i+1))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	link := path + linkSuffix
	os.Remove(link)
	if err := os.Link(path, link); err != nil {
		if err := copyFile(path, link); err != nil {
			return err
		}
	}
	return os.Rename(link, backupPath(path, 1))
}

// ReadJSON decodes the document at path into v. A missing document yields
// model.ErrNotFound. A corrupt primary falls back to the newest readable
// backup generation; when none is readable the error wraps model.ErrStorage.
func (f *Files) ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", model.ErrStorage, filepath.Base(path), err)
	}

	primaryErr := decode(data, v)
	if primaryErr == nil {
		return nil
	}

	f.logger.Warn("Filestore: primary document corrupt, trying backups",
		"path", path,
		"error", primaryErr.Error())

	for i := 1; i <= f.opts.Backups; i++ {
		data, err := os.ReadFile(backupPath(path, i))
		if err != nil {
			continue
		}
		if err := decode(data, v); err != nil {
			continue
		}
		metrics.StorageRecovery()
		f.logger.Warn("Filestore: recovered document from backup",
			"path", path,
			"generation", i)
		return nil
	}

	return fmt.Errorf("%w: %s is corrupt and no backup is readable: %v", model.ErrStorage, filepath.Base(path), primaryErr)
}

// Exists reports whether a document is present at path.
func (f *Files) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", model.ErrStorage, filepath.Base(path), err)
	}
	return true, nil
}

// RemoveStale deletes temporary files left under root by interrupted
// writes. It returns the number of files removed.
func (f *Files) RemoveStale(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.Contains(name, tempMarker) || strings.HasSuffix(name, linkSuffix) {
			if err := os.Remove(p); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to remove stale files: %w", err)
	}
	return removed, nil
}

func decode(data []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	sum := blake3.Sum256(env.Payload)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return errors.New("checksum mismatch")
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func backupPath(path string, generation int) string {
	return fmt.Sprintf("%s.bak.%d", path, generation)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// syncDir makes a rename durable. Errors are ignored: not every platform
// supports fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
