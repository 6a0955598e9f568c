package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/assetproc"
)

// errorResponse is the wire shape of a failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// renderDomainError maps domain error kinds to HTTP statuses. Unknown errors
// become 500 and are logged with the request path.
func renderDomainError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, contentcore.ErrNotFound), errors.Is(err, assetproc.ErrAssetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, contentcore.ErrInvalidFilter), errors.Is(err, contentcore.ErrInvalidLocale):
		status = http.StatusBadRequest
	case errors.Is(err, contentcore.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, contentcore.ErrNotImplemented):
		status = http.StatusNotImplemented
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
