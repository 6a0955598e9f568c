package assetproc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncService(t *testing.T, cfg Config) *Service {
	t.Helper()
	svc, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

// writeTestPNG writes a width x height PNG and returns its path.
func writeTestPNG(t *testing.T, dir string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	path := filepath.Join(dir, "test.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
	return path
}

func TestCacheKeyProperties(t *testing.T) {
	key1 := cacheKey("file:///a.png", &Resize{Width: 100}, nil)
	key2 := cacheKey("file:///a.png", &Resize{Width: 100}, nil)
	key3 := cacheKey("file:///a.png", &Resize{Width: 200}, nil)
	key4 := cacheKey("file:///a.png", nil, &Convert{Format: "webp"})

	assert.Equal(t, key1, key2, "same input must yield the same key")
	assert.NotEqual(t, key1, key3)
	assert.NotEqual(t, key1, key4)

	for _, key := range []string{key1, key3, key4} {
		assert.NotContains(t, key, "/")
		assert.NotContains(t, key, "+")
		assert.NotContains(t, key, "=")
	}
}

func TestFetchFileAsset(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 20, 20)
	svc := newSyncService(t, Config{})

	result, err := svc.Fetch(context.Background(), "file://"+path, nil, nil)
	require.NoError(t, err)
	defer result.Stream.Close()

	assert.Equal(t, "image/png", result.Meta.MimeType)
	assert.Equal(t, "test.png", result.Meta.FileName)
	assert.Greater(t, result.Meta.Size, int64(0))

	data, err := io.ReadAll(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, result.Meta.Size, int64(len(data)))
}

func TestFetchMissingFile(t *testing.T) {
	svc := newSyncService(t, Config{})

	_, err := svc.Fetch(context.Background(), "file:///does/not/exist.png", nil, nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestFetchHTTPAsset(t *testing.T) {
	payload := []byte("remote bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write(payload)
	}))
	defer server.Close()

	svc := newSyncService(t, Config{})
	result, err := svc.Fetch(context.Background(), server.URL+"/doc.txt", nil, nil)
	require.NoError(t, err)
	defer result.Stream.Close()

	assert.Equal(t, "text/plain", result.Meta.MimeType)
	assert.Equal(t, "doc.txt", result.Meta.FileName)
	require.NotNil(t, result.Meta.Expires, "max-age must translate into an expiry")
	assert.True(t, result.Meta.Expires.After(time.Now()))

	data, err := io.ReadAll(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = svc.Fetch(context.Background(), server.URL+"/missing", nil, nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestSyncResizeWithoutCache(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 100, 50)
	svc := newSyncService(t, Config{})

	result, err := svc.Fetch(context.Background(), "file://"+path, &Resize{Width: 40, Height: 20, Fit: FitFill}, nil)
	require.NoError(t, err)
	defer result.Stream.Close()

	img, format, err := image.Decode(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
	assert.Equal(t, "image/png", result.Meta.MimeType)
}

func TestSyncConvertToJPEG(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 30, 30)
	svc := newSyncService(t, Config{})

	result, err := svc.Fetch(context.Background(), "file://"+path, nil, &Convert{Format: "jpeg", Quality: 80})
	require.NoError(t, err)
	defer result.Stream.Close()

	assert.Equal(t, "image/jpeg", result.Meta.MimeType)
	_, format, err := image.Decode(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestResizeNeverScalesUpByDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 10, 10)
	svc := newSyncService(t, Config{})

	result, err := svc.Fetch(context.Background(), "file://"+path, &Resize{Width: 500, Height: 500}, nil)
	require.NoError(t, err)
	defer result.Stream.Close()

	img, _, err := image.Decode(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestResizeScaleUpWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 10, 10)
	svc := newSyncService(t, Config{ScaleUp: true})

	result, err := svc.Fetch(context.Background(), "file://"+path, &Resize{Width: 40, Height: 40, Fit: FitFill}, nil)
	require.NoError(t, err)
	defer result.Stream.Close()

	img, _, err := image.Decode(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}

func TestCoverResizeCropsToExactDimensions(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 200, 100)
	svc := newSyncService(t, Config{})

	result, err := svc.Fetch(context.Background(), "file://"+path, &Resize{Width: 50, Height: 50}, nil)
	require.NoError(t, err)
	defer result.Stream.Close()

	img, _, err := image.Decode(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestNonBlockingTransformWithCache(t *testing.T) {
	sourceDir := t.TempDir()
	cacheDir := t.TempDir()
	path := writeTestPNG(t, sourceDir, 100, 100)
	svc := newSyncService(t, Config{CacheEnabled: true, CacheDir: cacheDir, Workers: 1})

	uri := "file://" + path
	resizeReq := &Resize{Width: 50, Height: 50, Fit: FitFill}

	result, err := svc.Fetch(context.Background(), uri, resizeReq, nil)
	require.NoError(t, err)
	img, _, err := image.Decode(result.Stream)
	require.NoError(t, err)
	result.Stream.Close()
	assert.Equal(t, 100, img.Bounds().Dx(), "first response must be the untransformed source")

	// The background worker fills the cache; subsequent requests get the
	// transformed rendition.
	key := cacheKey(uri, resizeReq, nil)
	cachePath := filepath.Join(cacheDir, key)
	require.Eventually(t, func() bool {
		_, err := os.Stat(cachePath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	result, err = svc.Fetch(context.Background(), uri, resizeReq, nil)
	require.NoError(t, err)
	defer result.Stream.Close()
	img, _, err = image.Decode(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestWriteThroughCacheForNonImages(t *testing.T) {
	sourceDir := t.TempDir()
	cacheDir := t.TempDir()
	path := filepath.Join(sourceDir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello cache"), 0644))
	svc := newSyncService(t, Config{CacheEnabled: true, CacheDir: cacheDir})

	uri := "file://" + path
	result, err := svc.Fetch(context.Background(), uri, nil, nil)
	require.NoError(t, err)
	data, err := io.ReadAll(result.Stream)
	require.NoError(t, err)
	require.NoError(t, result.Stream.Close())
	assert.Equal(t, "hello cache", string(data))

	// The source can disappear; the cache entry answers now.
	require.NoError(t, os.Remove(path))

	result, err = svc.Fetch(context.Background(), uri, nil, nil)
	require.NoError(t, err)
	defer result.Stream.Close()
	data, err = io.ReadAll(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, "hello cache", string(data))
}

func TestPartialReadDoesNotPoisonCache(t *testing.T) {
	sourceDir := t.TempDir()
	cacheDir := t.TempDir()
	path := filepath.Join(sourceDir, "doc.txt")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 4096), 0644))
	svc := newSyncService(t, Config{CacheEnabled: true, CacheDir: cacheDir})

	uri := "file://" + path
	result, err := svc.Fetch(context.Background(), uri, nil, nil)
	require.NoError(t, err)
	buf := make([]byte, 10)
	_, err = result.Stream.Read(buf)
	require.NoError(t, err)
	require.NoError(t, result.Stream.Close())

	// Change the source; a complete entry would mask this.
	require.NoError(t, os.WriteFile(path, []byte("fresh"), 0644))

	result, err = svc.Fetch(context.Background(), uri, nil, nil)
	require.NoError(t, err)
	defer result.Stream.Close()
	data, err := io.ReadAll(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestExpiredCacheEntryIsIgnored(t *testing.T) {
	cacheDir := t.TempDir()
	svc := newSyncService(t, Config{CacheEnabled: true, CacheDir: cacheDir, CacheTTL: time.Minute})

	key := cacheKey("file:///gone.txt", nil, nil)
	cachePath := filepath.Join(cacheDir, key)
	expired := time.Now().Add(-time.Minute)
	require.NoError(t, svc.writeCacheEntry(cachePath, &Result{
		Stream: io.NopCloser(strings.NewReader("stale")),
		Meta:   Meta{MimeType: "text/plain", Expires: &expired},
	}))

	assert.Nil(t, svc.readCacheEntry(cachePath))

	// A future expiry keeps the entry alive.
	fresh := time.Now().Add(time.Hour)
	require.NoError(t, svc.writeCacheEntry(cachePath, &Result{
		Stream: io.NopCloser(strings.NewReader("valid")),
		Meta:   Meta{MimeType: "text/plain", Expires: &fresh},
	}))
	cached := svc.readCacheEntry(cachePath)
	require.NotNil(t, cached)
	defer cached.Stream.Close()
	data, err := io.ReadAll(cached.Stream)
	require.NoError(t, err)
	assert.Equal(t, "valid", string(data))
}

func TestCacheRequiresDirectory(t *testing.T) {
	_, err := New(Config{CacheEnabled: true}, nil)
	assert.Error(t, err)
}

func TestFetchUsesRegisteredSchemeResolver(t *testing.T) {
	svc := newSyncService(t, Config{})
	svc.RegisterResolver("mem", func(ctx context.Context, sourceURI string) (*Result, error) {
		assert.Equal(t, "mem://assets/blob.txt", sourceURI)
		return &Result{
			Stream: io.NopCloser(strings.NewReader("blob bytes")),
			Meta:   Meta{Size: 10, MimeType: "text/plain", FileName: "blob.txt"},
		}, nil
	})

	result, err := svc.Fetch(context.Background(), "mem://assets/blob.txt", nil, nil)
	require.NoError(t, err)
	defer result.Stream.Close()

	data, err := io.ReadAll(result.Stream)
	require.NoError(t, err)
	assert.Equal(t, "blob bytes", string(data))
	assert.Equal(t, "text/plain", result.Meta.MimeType)
}

func TestFetchUnresolvableSchemeNotFound(t *testing.T) {
	svc := newSyncService(t, Config{})

	_, err := svc.Fetch(context.Background(), "mem://assets/blob.txt", nil, nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestConcurrentFetchesShareOneTransform(t *testing.T) {
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 100, 100))))
	payload := pngBuf.Bytes()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Slow responses keep both foreground fetches in flight while the
		// dispatches race for the in-flight slot.
		time.Sleep(150 * time.Millisecond)
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	t.Cleanup(server.Close)

	cacheDir := t.TempDir()
	svc := newSyncService(t, Config{CacheEnabled: true, CacheDir: cacheDir, Workers: 1})

	uri := server.URL + "/photo.png"
	resizeReq := &Resize{Width: 50, Height: 50, Fit: FitFill}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Fetch(context.Background(), uri, resizeReq, nil)
			if assert.NoError(t, err) {
				io.Copy(io.Discard, result.Stream)
				result.Stream.Close()
			}
		}()
	}
	wg.Wait()

	cachePath := filepath.Join(cacheDir, cacheKey(uri, resizeReq, nil))
	require.Eventually(t, func() bool {
		_, err := os.Stat(cachePath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	// Two foreground fetches plus exactly one background transform fetch.
	assert.Equal(t, int32(3), requests.Load())
}
