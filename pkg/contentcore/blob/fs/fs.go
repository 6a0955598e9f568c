// Package fs provides a filesystem blob store.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/modularcms/content-core/pkg/contentcore/blob"
)

// Config options for the filesystem backend.
type Config struct {
	BaseDir string // Base directory for storing files
}

// Backend is a filesystem implementation of blob.Store.
type Backend struct {
	baseDir string
}

// New creates a filesystem storage backend, creating the base
// directory if it does not exist.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{baseDir: config.BaseDir}, nil
}

func (b *Backend) objectPath(objectKey string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(objectKey))
}

func (b *Backend) Upload(ctx context.Context, reader io.Reader, params blob.UploadParams) error {
	filePath := b.objectPath(params.ObjectKey)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	file, err := os.Open(b.objectPath(objectKey))
	if os.IsNotExist(err) {
		return nil, blob.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath := b.objectPath(objectKey)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return blob.ErrNotFound
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*blob.ObjectMeta, error) {
	filePath := b.objectPath(objectKey)

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, blob.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &blob.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// SourceURI returns a file:// URI pointing at the stored object.
func (b *Backend) SourceURI(ctx context.Context, objectKey string) (string, error) {
	filePath := b.objectPath(objectKey)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", blob.ErrNotFound
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// cleanupEmptyDirectories removes empty directories up to baseDir.
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
