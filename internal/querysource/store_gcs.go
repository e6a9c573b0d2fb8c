package querysource

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSStore reads and publishes query outputs in one Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore connects with Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to gcs for query outputs: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) object(key string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key)
}

func (s *GCSStore) uri(key string) string {
	return "gs://" + s.bucket + "/" + key
}

// Put publishes a query output.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("uploading query output %s: %w", s.uri(key), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("uploading query output %s: %w", s.uri(key), err)
	}
	return nil
}

// Get downloads a query output.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.uri(key))
	}
	if err != nil {
		return nil, fmt.Errorf("downloading query output %s: %w", s.uri(key), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("downloading query output %s: %w", s.uri(key), err)
	}
	return data, nil
}

// Delete removes a query output. Missing outputs are not an error.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("removing query output %s: %w", s.uri(key), err)
	}
	return nil
}
