// Package memory provides an in-memory blob store for tests and demos.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/modularcms/content-core/pkg/contentcore/blob"
)

// Scheme is the URI scheme of locators issued by this store. The scheme
// is only resolvable through the store itself.
const Scheme = "mem"

type object struct {
	data      []byte
	mimeType  string
	updatedAt time.Time
}

// Store keeps objects in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Upload(ctx context.Context, reader io.Reader, params blob.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[params.ObjectKey] = object{
		data:      data,
		mimeType:  params.MimeType,
		updatedAt: time.Now(),
	}
	return nil
}

func (s *Store) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Delete(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectKey]; !ok {
		return blob.ErrNotFound
	}
	delete(s.objects, objectKey)
	return nil
}

func (s *Store) GetObjectMeta(ctx context.Context, objectKey string) (*blob.ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey]
	if !ok {
		return nil, blob.ErrNotFound
	}
	contentType := obj.mimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &blob.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: contentType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}

// SourceURI issues a mem scheme locator for an existing object.
func (s *Store) SourceURI(ctx context.Context, objectKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[objectKey]; !ok {
		return "", blob.ErrNotFound
	}
	return Scheme + "://" + objectKey, nil
}
