// Package azure stores attachments in Azure Blob Storage. Attachment URLs are
// short-lived SAS URLs, or plain URLs below a CDN when one is configured.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/storage"
	"github.com/fiee/dorsale/pkg/checksum"
)

// URLTTL is the lifetime of SAS attachment URLs.
const URLTTL = 15 * time.Minute

func init() {
	storage.Register("azure", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Azure)
	})
}

// AzureStorage implements storage.Storage on a blob container.
type AzureStorage struct {
	client        *azblob.Client
	credential    *azblob.SharedKeyCredential
	containerName string
	cdnURL        string
}

// New creates an Azure backend authenticated with the account's shared key.
func New(cfg *config.AzureStorageConfig) (*AzureStorage, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureStorage{
		client:        client,
		credential:    credential,
		containerName: cfg.ContainerName,
		cdnURL:        strings.TrimSuffix(cfg.CDNURL, "/"),
	}, nil
}

func isNotFound(err error) bool {
	var re *azcore.ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

func (s *AzureStorage) blob(key string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(key)
}

// Save uploads r as a block blob and keeps the digest in blob metadata.
func (s *AzureStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (*storage.Object, error) {
	k, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}
	cr := checksum.NewReader(r)
	data, err := io.ReadAll(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum := cr.Sum()

	opts := &blockblob.UploadOptions{Metadata: map[string]*string{"sha256": &sum}}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	bb := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlockBlobClient(k)
	if _, err := bb.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), opts); err != nil {
		return nil, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	return &storage.Object{Key: k, Size: cr.Size(), Checksum: sum, ContentType: contentType}, nil
}

// Open streams the blob content.
func (s *AzureStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.blob(key).DownloadStream(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}
	return resp.Body, nil
}

// Delete removes key.
func (s *AzureStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.blob(key).Delete(ctx, nil); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete from Azure Blob: %w", err)
	}
	return nil
}

// Exists fetches the blob properties.
func (s *AzureStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.blob(key).GetProperties(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob: %w", err)
	}
	return true, nil
}

// URL returns the CDN URL of key, or a read-only SAS URL valid for URLTTL.
func (s *AzureStorage) URL(_ context.Context, key string) (string, error) {
	if s.cdnURL != "" {
		return s.cdnURL + "/" + key, nil
	}
	if s.credential == nil {
		return "", fmt.Errorf("no shared key to sign %s", key)
	}

	now := time.Now().UTC()
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    now.Add(URLTTL),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.containerName,
		BlobName:      key,
	}.SignWithSharedKey(s.credential)
	if err != nil {
		return "", fmt.Errorf("failed to generate SAS token: %w", err)
	}

	base := strings.TrimSuffix(s.client.URL(), "/")
	return fmt.Sprintf("%s/%s/%s?%s", base, s.containerName, url.PathEscape(key), params.Encode()), nil
}
