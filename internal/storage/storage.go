// Package storage defines the attachment Storage interface shared by the file
// backends (local, s3, gcs, azure).
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return New(&cfg.Storage.MyBackend)
//	    })
//	}
//
// cmd/server blank-imports every backend so the configured one can be built.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when no file is stored under a key.
var ErrNotFound = errors.New("attachment not found")

// Storage keeps attachment files under slash-separated keys such as
// "projects/project/42/brief.pdf".
type Storage interface {
	// Save stores the content of r under key, replacing any previous file.
	Save(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error)

	// Open returns the stored content. Missing keys yield ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// URL returns an address a browser can fetch the file from.
	URL(ctx context.Context, key string) (string, error)
}

// Mover is implemented by backends that can relocate a file server-side.
type Mover interface {
	Move(ctx context.Context, src, dst string) error
}

// Object describes a stored file.
type Object struct {
	Key         string
	Size        int64
	Checksum    string
	ContentType string
}

// CleanKey normalizes key and rejects keys escaping the storage root.
func CleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid attachment key %q", key)
	}
	return k, nil
}

// Move relocates src to dst, using the backend's own Move when it has one and
// copy-then-delete otherwise.
func Move(ctx context.Context, s Storage, src, dst, contentType string) error {
	if src == dst {
		return nil
	}
	if m, ok := s.(Mover); ok {
		return m.Move(ctx, src, dst)
	}
	r, err := s.Open(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer r.Close()
	if _, err := s.Save(ctx, dst, r, contentType); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := s.Delete(ctx, src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}
