// Package local stores attachments on the local filesystem. Files are served
// by the HTTP server itself under the configured URL prefix, so this backend
// suits development and single-node deployments.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/storage"
	"github.com/fiee/dorsale/pkg/checksum"
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local)
	})
}

// LocalStorage implements storage.Storage on a directory tree.
type LocalStorage struct {
	basePath  string
	urlPrefix string
}

// New creates the base directory if needed.
func New(cfg *config.LocalStorageConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		basePath:  cfg.BasePath,
		urlPrefix: strings.TrimSuffix(cfg.URLPrefix, "/"),
	}, nil
}

// BasePath returns the root directory, for serving files statically.
func (s *LocalStorage) BasePath() string { return s.basePath }

func (s *LocalStorage) fullPath(key string) (string, string, error) {
	k, err := storage.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return k, filepath.Join(s.basePath, filepath.FromSlash(k)), nil
}

// Save writes r to key through a temporary file so readers never see a partial file.
func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (*storage.Object, error) {
	k, full, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	cr := checksum.NewReader(r)
	if _, err := io.Copy(tmp, cr); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	return &storage.Object{
		Key:         k,
		Size:        cr.Size(),
		Checksum:    cr.Sum(),
		ContentType: contentType,
	}, nil
}

// Open opens the file stored under key.
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	_, full, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes key and prunes directories left empty below the base path.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	_, full, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	s.prune(filepath.Dir(full))
	return nil
}

func (s *LocalStorage) prune(dir string) {
	base := filepath.Clean(s.basePath)
	for dir != base && strings.HasPrefix(dir, base) {
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Exists reports whether key is stored.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, full, err := s.fullPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// URL returns the prefixed path of key.
func (s *LocalStorage) URL(_ context.Context, key string) (string, error) {
	k, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	return s.urlPrefix + "/" + k, nil
}

// Move renames src to dst on disk.
func (s *LocalStorage) Move(_ context.Context, src, dst string) error {
	_, from, err := s.fullPath(src)
	if err != nil {
		return err
	}
	_, to, err := s.fullPath(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to move file: %w", err)
	}
	s.prune(filepath.Dir(from))
	return nil
}
