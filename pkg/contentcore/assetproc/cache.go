package assetproc

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Cache entry layout: for key K the payload lives in file K and the
// metadata record in K_meta.json next to it.
const metaFileSuffix = "_meta.json"

var cacheKeyReplacer = strings.NewReplacer("/", "__", "=", "__", "+", "__")

// cacheKey builds a stable, filesystem-safe key over the source URI and
// the requested transform.
func cacheKey(sourceURI string, resize *Resize, convert *Convert) string {
	var resizeJSON, convertJSON []byte
	if resize != nil {
		resizeJSON, _ = json.Marshal(resize)
	}
	if convert != nil {
		convertJSON, _ = json.Marshal(convert)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%s", sourceURI, resizeJSON, convertJSON)))
	return cacheKeyReplacer.Replace(base64.StdEncoding.EncodeToString(sum[:]))
}

// readCacheEntry returns the cached asset or nil when the entry is absent,
// unreadable or expired. The expiry comes from the stored metadata when the
// source supplied one, else from the file mtime plus the default TTL.
func (s *Service) readCacheEntry(cachePath string) *Result {
	info, err := os.Stat(cachePath)
	if err != nil {
		return nil
	}

	metaRaw, err := os.ReadFile(cachePath + metaFileSuffix)
	if err != nil {
		return nil
	}
	var meta Meta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil
	}

	expires := info.ModTime().Add(s.config.CacheTTL)
	if meta.Expires != nil {
		expires = *meta.Expires
	}
	if !expires.After(time.Now()) {
		return nil
	}

	file, err := os.Open(cachePath)
	if err != nil {
		return nil
	}
	s.logger.Debug("loading asset from cache", "path", cachePath)
	meta.Size = info.Size()
	return &Result{Stream: file, Meta: meta}
}

// writeCacheEntry persists a fully materialized asset. The payload goes to
// a temp file first and is renamed into place, so a crash mid-write never
// leaves a valid-looking partial entry.
func (s *Service) writeCacheEntry(cachePath string, asset *Result) error {
	metaRaw, err := json.Marshal(asset.Meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cachePath+metaFileSuffix, metaRaw, 0644); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.config.CacheDir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, asset.Stream); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), cachePath)
}

// cacheTeeReader copies everything the caller reads into a temp file and
// promotes it to a cache entry once the source is fully consumed.
type cacheTeeReader struct {
	service   *Service
	source    io.ReadCloser
	cachePath string
	tmp       *os.File
	complete  bool
	failed    bool
}

func (s *Service) newCacheTeeReader(source io.ReadCloser, cachePath string, meta Meta) io.ReadCloser {
	metaRaw, err := json.Marshal(meta)
	if err == nil {
		err = os.WriteFile(cachePath+metaFileSuffix, metaRaw, 0644)
	}
	var tmp *os.File
	if err == nil {
		tmp, err = os.CreateTemp(s.config.CacheDir, ".tmp-*")
	}
	if err != nil {
		s.logger.Error("unable to prepare asset cache entry", "path", cachePath, "error", err)
		return source
	}
	return &cacheTeeReader{
		service:   s,
		source:    source,
		cachePath: cachePath,
		tmp:       tmp,
	}
}

func (r *cacheTeeReader) Read(p []byte) (int, error) {
	n, err := r.source.Read(p)
	if n > 0 && !r.failed {
		if _, writeErr := r.tmp.Write(p[:n]); writeErr != nil {
			r.failed = true
			r.service.logger.Error("asset cache write failed", "path", r.cachePath, "error", writeErr)
		}
	}
	if err == io.EOF {
		r.complete = true
	}
	return n, err
}

func (r *cacheTeeReader) Close() error {
	closeErr := r.source.Close()
	tmpName := r.tmp.Name()
	if err := r.tmp.Close(); err != nil {
		os.Remove(tmpName)
		return closeErr
	}
	if r.complete && !r.failed {
		if err := os.Rename(tmpName, r.cachePath); err != nil {
			r.service.logger.Error("asset cache rename failed", "path", r.cachePath, "error", err)
			os.Remove(tmpName)
		}
	} else {
		os.Remove(tmpName)
	}
	return closeErr
}
