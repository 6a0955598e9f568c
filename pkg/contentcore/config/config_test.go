package config

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/api"
)

func validConfig() *ServerConfig {
	return &ServerConfig{
		Port:        "8080",
		Environment: "development",
		Provider:    ProviderInternalStorage,
		Storage:     StorageConfig{Backend: "memory"},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.Backend = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate(), "s3 requires a bucket")
	cfg.Storage.S3Bucket = "assets"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Provider = "unknown"
	assert.Error(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ProviderInternalStorage, cfg.Provider)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.Equal(t, "/api/content", cfg.APIBasePath)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.True(t, cfg.IsDevelopment())
}

func TestDefaultWiringServesUploadedAssets(t *testing.T) {
	t.Setenv("ASSET_CACHE_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Backend)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	services, err := cfg.BuildServices(context.Background(), logger)
	require.NoError(t, err)
	t.Cleanup(services.AssetProc.Close)

	router := api.NewRouter(services.Service, services.Rewriter, services.AssetProc, api.Config{
		APIBasePath:   cfg.APIBasePath,
		DefaultLocale: cfg.DefaultLocale,
	}, logger)

	asset, err := services.Service.UploadAsset(
		context.Background(),
		strings.NewReader("memory payload"),
		contentcore.UploadAssetRequest{Meta: contentcore.AssetMeta{FileName: "note.txt", MimeType: "text/plain"}},
	)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, asset.URL, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "memory payload", string(body))
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_LOCALE", "de")
	t.Setenv("STORAGE_BACKEND", "fs")
	t.Setenv("STORAGE_BASE_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "de", cfg.DefaultLocale)
	assert.Equal(t, "fs", cfg.Storage.Backend)
}
