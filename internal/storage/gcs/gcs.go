// Package gcs stores attachments in Google Cloud Storage. Attachment URLs are
// V4 signed URLs, which need signBlob permission for the client identity.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/fiee/dorsale/internal/config"
	appstorage "github.com/fiee/dorsale/internal/storage"
	"github.com/fiee/dorsale/pkg/checksum"
)

// URLTTL is the lifetime of signed attachment URLs.
const URLTTL = 15 * time.Minute

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(&cfg.Storage.GCS)
	})
}

// GCSStorage implements storage.Storage on a GCS bucket.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// New creates a GCS backend.
//
// Authentication methods:
//   - "default" or empty: Application Default Credentials
//   - "service_account": a service account key file or inline JSON
func New(cfg *appconfig.GCSStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	authMethod := cfg.AuthMethod
	if authMethod == "" {
		authMethod = "default"
		if cfg.CredentialsFile != "" || cfg.CredentialsJSON != "" {
			authMethod = "service_account"
		}
	}

	switch authMethod {
	case "service_account":
		switch {
		case cfg.CredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		default:
			return nil, fmt.Errorf("credentials_file or credentials_json is required for service_account auth")
		}
	case "default":
	default:
		return nil, fmt.Errorf("unsupported auth_method: %s (must be 'default' or 'service_account')", authMethod)
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStorage{client: client, bucket: cfg.Bucket}, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Save streams r into key.
func (s *GCSStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (*appstorage.Object, error) {
	k, err := appstorage.CleanKey(key)
	if err != nil {
		return nil, err
	}

	w := s.client.Bucket(s.bucket).Object(k).NewWriter(ctx)
	w.ContentType = contentType
	cr := checksum.NewReader(r)
	if _, err := io.Copy(w, cr); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	// the digest is only known after the body went out
	sum := cr.Sum()
	if _, err := s.client.Bucket(s.bucket).Object(k).Update(ctx, storage.ObjectAttrsToUpdate{
		Metadata: map[string]string{"sha256": sum},
	}); err != nil {
		return nil, fmt.Errorf("failed to set GCS metadata: %w", err)
	}

	return &appstorage.Object{Key: k, Size: cr.Size(), Checksum: sum, ContentType: contentType}, nil
}

// Open streams the object content.
func (s *GCSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, appstorage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download from GCS: %w", err)
	}
	return r, nil
}

// Delete removes key.
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// Exists fetches the object attributes.
func (s *GCSStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check object: %w", err)
	}
	return true, nil
}

// URL returns a V4 signed GET URL valid for URLTTL.
func (s *GCSStorage) URL(_ context.Context, key string) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(URLTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

// Move copies src to dst server-side and deletes src.
func (s *GCSStorage) Move(ctx context.Context, src, dst string) error {
	k, err := appstorage.CleanKey(dst)
	if err != nil {
		return err
	}
	bucket := s.client.Bucket(s.bucket)
	if _, err := bucket.Object(k).CopierFrom(bucket.Object(src)).Run(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return appstorage.ErrNotFound
		}
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return s.Delete(ctx, src)
}
