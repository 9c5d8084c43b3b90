package media

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSStore uploads media to a Google Cloud Storage bucket.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	prefix  string
	baseURL string
}

// NewGCSStore creates a GCSStore. When baseURL is empty references point at
// storage.googleapis.com.
func NewGCSStore(client *storage.Client, bucket, prefix, baseURL string) *GCSStore {
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Put writes the object and returns its public URL.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	name := key
	if s.prefix != "" {
		name = s.prefix + "/" + key
	}

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write to storage: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close storage writer: %w", err)
	}

	return s.baseURL + "/" + name, nil
}
