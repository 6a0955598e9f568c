// Package api exposes the content platform over HTTP. It decodes requests,
// attaches the caller context and maps domain errors onto status codes; all
// business behavior lives in the contentcore service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/assetproc"
	"github.com/modularcms/content-core/pkg/contentcore/urlrewrite"
)

// Config holds the HTTP-facing settings.
type Config struct {
	// APIBasePath is where the content API is mounted, e.g. /api/content.
	APIBasePath string
	// DefaultLocale applies when the caller sends no Accept-Language.
	DefaultLocale string
	// JWTSecret verifies bearer tokens carrying the admin claim. Empty
	// disables token verification, all callers are non-admin then.
	JWTSecret string
	// Environment enables permissive CORS in development.
	Environment string
}

// NewRouter builds the full HTTP router.
func NewRouter(service contentcore.Service, rewriter *urlrewrite.Service, proc *assetproc.Service, cfg Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	contentHandler := &ContentHandler{service: service, logger: logger}
	assetHandler := &AssetHandler{service: service, logger: logger}
	deliveryHandler := &DeliveryHandler{rewriter: rewriter, proc: proc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Environment == "development" {
		r.Use(corsMiddleware)
	}

	r.Get("/health", handleHealth)

	r.Route(cfg.APIBasePath, func(r chi.Router) {
		r.Use(callerMiddleware(cfg))

		r.Route("/content/{type}", func(r chi.Router) {
			r.Get("/", contentHandler.SearchContent)
			r.Post("/search", contentHandler.SearchContentBody)
			r.Post("/", contentHandler.InsertContent)
			r.Get("/{id}", contentHandler.GetContent)
			r.Put("/{id}", contentHandler.UpdateContent)
			r.Delete("/{id}", contentHandler.RemoveContent)
			r.Get("/{id}/versions", contentHandler.GetContentVersions)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", assetHandler.SearchAssets)
			r.Post("/", assetHandler.UploadAsset)
			r.Delete("/{id}", assetHandler.RemoveAsset)

			// Asset delivery through the proxy table.
			r.Get("/{proxy}/*", deliveryHandler.ServeAsset)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language, X-Frontend-Base-Path")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
