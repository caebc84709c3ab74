// Package archive stores raw crawl artifacts (page HTML) for later reprocessing.
package archive

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
)

// GCSStore archives artifacts in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCS-backed archive.
func NewGCS(client *storage.Client, bucket, prefix string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// PutObject implements core.BlobStore, returning a gs:// URI.
func (s *GCSStore) PutObject(ctx context.Context, objPath string, contentType string, data []byte) (string, error) {
	if objPath == "" {
		return "", fmt.Errorf("object path is required")
	}
	full := path.Join(s.prefix, objPath)

	writer := s.client.Bucket(s.bucket).Object(full).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, full), nil
}
