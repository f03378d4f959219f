// Package supabase publishes assets to a public Supabase Storage bucket.
package supabase

import (
	"context"
	"fmt"
	"io"
	"sync"

	"exam-parser/internal/domain"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// ObjectStore implements domain.ObjectStore on Supabase Storage.
type ObjectStore struct {
	client *supabase.Client
	bucket string
	logger domain.Logger

	// storage-go keeps request headers on the shared transport.
	mu sync.Mutex
}

// NewObjectStore creates the store and its Supabase client.
func NewObjectStore(config domain.Config, logger domain.Logger) (*ObjectStore, error) {
	supabaseURL := config.GetSupabaseURL()
	supabaseKey := config.GetSupabaseKey()
	bucket := config.GetSupabaseBucket()

	if supabaseURL == "" || supabaseKey == "" {
		return nil, fmt.Errorf("supabase URL and key must be provided")
	}
	if bucket == "" {
		return nil, fmt.Errorf("supabase bucket must be provided")
	}

	client, err := supabase.NewClient(supabaseURL, supabaseKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	logger.Info("Supabase storage initialized successfully", "url", supabaseURL, "bucket", bucket)
	return &ObjectStore{client: client, bucket: bucket, logger: logger}, nil
}

// Upload stores body under name and returns the object's public URL.
func (s *ObjectStore) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	upsert := false
	_, err := s.client.Storage.UploadFile(s.bucket, name, body, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	url := s.client.Storage.GetPublicUrl(s.bucket, name).SignedURL
	s.logger.Debug("Object uploaded", "name", name, "content_type", contentType)
	return url, nil
}
