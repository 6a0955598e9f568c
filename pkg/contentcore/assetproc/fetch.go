package assetproc

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// fetchSource opens the raw asset behind a file:// or http(s):// locator,
// or any scheme with a registered resolver.
func (s *Service) fetchSource(ctx context.Context, sourceURI string) (*Result, error) {
	if scheme, _, ok := strings.Cut(sourceURI, "://"); ok {
		if resolver, found := s.resolvers[scheme]; found {
			return resolver(ctx, sourceURI)
		}
	}
	if strings.HasPrefix(sourceURI, "http://") || strings.HasPrefix(sourceURI, "https://") {
		return s.fetchHTTPAsset(ctx, sourceURI)
	}
	return s.fetchFileAsset(sourceURI)
}

func (s *Service) fetchFileAsset(fileURI string) (*Result, error) {
	filePath := strings.TrimPrefix(fileURI, "file://")

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, fileURI)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, fileURI)
	}

	return &Result{
		Stream: file,
		Meta: Meta{
			Size:     info.Size(),
			MimeType: mimeTypeByExtension(filePath),
			FileName: filepath.Base(filePath),
		},
	}, nil
}

func (s *Service) fetchHTTPAsset(ctx context.Context, httpURI string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURI, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid asset URI %s: %w", httpURI, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching asset %s: %w", httpURI, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, httpURI)
		}
		return nil, fmt.Errorf("fetching asset %s: unexpected status %d", httpURI, resp.StatusCode)
	}

	meta := Meta{
		MimeType: resp.Header.Get("Content-Type"),
		FileName: fileNameFromResponse(resp, httpURI),
		Expires:  expiryFromResponse(resp),
	}
	if sizeHeader := resp.Header.Get("Content-Length"); sizeHeader != "" {
		if size, err := strconv.ParseInt(sizeHeader, 10, 64); err == nil {
			meta.Size = size
		}
	}

	return &Result{Stream: resp.Body, Meta: meta}, nil
}

func fileNameFromResponse(resp *http.Response, httpURI string) string {
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if filename := params["filename"]; filename != "" {
				return filename
			}
		}
	}
	if u, err := url.Parse(httpURI); err == nil {
		return path.Base(u.Path)
	}
	return ""
}

// expiryFromResponse derives an explicit expiry from the Expires header or
// the Cache-Control max-age directive, in that order.
func expiryFromResponse(resp *http.Response) *time.Time {
	if expiresHeader := resp.Header.Get("Expires"); expiresHeader != "" {
		if expires, err := http.ParseTime(expiresHeader); err == nil {
			return &expires
		}
	}
	if cacheControl := resp.Header.Get("Cache-Control"); cacheControl != "" {
		for _, directive := range strings.Split(cacheControl, ",") {
			directive = strings.TrimSpace(directive)
			if maxAge, ok := strings.CutPrefix(directive, "max-age="); ok {
				if seconds, err := strconv.Atoi(maxAge); err == nil {
					expires := time.Now().Add(time.Duration(seconds) * time.Second)
					return &expires
				}
			}
		}
	}
	return nil
}

func mimeTypeByExtension(filePath string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath)))
	if mimeType == "" {
		return "application/octet-stream"
	}
	// TypeByExtension may append a charset parameter.
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		return base
	}
	return mimeType
}
