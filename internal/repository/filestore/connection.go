package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chaisthra/vibetrack/internal/logger"
)

const (
	usersDir      = "users"
	partitionsDir = "partitions"
	partitionFile = "partition.json"
)

// Connection is an opened storage root shared by the repositories.
type Connection struct {
	Root  string
	Files *Files
}

// NewConnection prepares root for use. It creates the directory layout and
// removes temporary files left behind by an earlier crash.
func NewConnection(root string, opts Options, logger *logger.Logger) (*Connection, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}

	for _, dir := range []string{usersDir, partitionsDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	files := NewFiles(opts, logger)
	removed, err := files.RemoveStale(abs)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		logger.Info("Filestore: removed stale temporary files", "count", removed)
	}

	return &Connection{Root: abs, Files: files}, nil
}

// Ping checks that the storage root is still reachable.
func (c *Connection) Ping() error {
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", c.Root)
	}
	return nil
}

func (c *Connection) userPath(username string) string {
	return filepath.Join(c.Root, usersDir, username+".json")
}

func (c *Connection) partitionPath(owner string) string {
	return filepath.Join(c.Root, partitionsDir, owner, partitionFile)
}
