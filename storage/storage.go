// Package storage provides the key-value backends the patient collection is
// persisted to: one file per key on disk, a Postgres table, or memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/pn-calculator/interfaces"
)

// ErrNotFound is returned by Get for a key that was never written or was deleted
var ErrNotFound = errors.New("storage: key not found")

// ErrInvalidKey is returned for keys that are empty or not path safe
var ErrInvalidKey = errors.New("storage: invalid key")

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a backend
type Options struct {
	Backend     string
	DataDir     string
	DatabaseURL string
	MaxConns    int32
}

// Open returns the backend named by opts.Backend
func Open(ctx context.Context, opts Options) (interfaces.BlobStore, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileBlobStore(opts.DataDir)
	case BackendPostgres:
		return NewPostgresBlobStore(ctx, opts.DatabaseURL, opts.MaxConns)
	case BackendMemory:
		return NewMemoryBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
