package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alfredjeanlab/relay/internal/blob"
)

// Destination receives complete JSONL snapshots.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// BlobDestination stores each snapshot under a fixed key of a blob store,
// usually the S3 store, overwriting the previous one.
type BlobDestination struct {
	store blob.Store
	key   string
}

func NewBlobDestination(s blob.Store, key string) *BlobDestination {
	return &BlobDestination{store: s, key: key}
}

func (d *BlobDestination) Write(ctx context.Context, data []byte) error {
	if err := d.store.Put(ctx, d.key, data); err != nil {
		return fmt.Errorf("put backup %s: %w", d.key, err)
	}
	return nil
}

// FileDestination keeps the latest snapshot in a local file.
type FileDestination struct {
	path string
}

func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

// Write replaces the file through a temporary file and rename, so readers
// never see a partial snapshot.
func (d *FileDestination) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".relay-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("replace backup: %w", err)
	}
	return nil
}
