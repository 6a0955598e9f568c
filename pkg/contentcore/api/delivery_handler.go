package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/modularcms/content-core/pkg/contentcore/assetproc"
	"github.com/modularcms/content-core/pkg/contentcore/blob"
	"github.com/modularcms/content-core/pkg/contentcore/urlrewrite"
)

// DeliveryHandler streams assets through the provider's proxy table,
// optionally resized or converted on the way out.
type DeliveryHandler struct {
	rewriter *urlrewrite.Service
	proc     *assetproc.Service
	logger   *slog.Logger
}

func (h *DeliveryHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	proxy, ok := h.rewriter.ProxyConfig(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	internalPath := h.rewriter.RewriteURL(r.Context(), r.URL.Path, true)
	sourceURI, err := proxy.ToFullURI(r.Context(), internalPath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("asset source resolution failed", "path", r.URL.Path, "error", err)
		http.Error(w, "asset source resolution failed", http.StatusInternalServerError)
		return
	}

	var resize *assetproc.Resize
	var convert *assetproc.Convert
	if proxy.AllowImageProcessing {
		resize, convert = parseTransformParams(r)
	}

	result, err := h.proc.Fetch(r.Context(), sourceURI, resize, convert)
	if err != nil {
		if errors.Is(err, assetproc.ErrAssetNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("asset fetch failed", "uri", sourceURI, "error", err)
		http.Error(w, "asset fetch failed", http.StatusInternalServerError)
		return
	}
	defer result.Stream.Close()

	if result.Meta.MimeType != "" {
		w.Header().Set("Content-Type", result.Meta.MimeType)
	}
	if result.Meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.Meta.Size, 10))
	}
	if result.Meta.FileName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.Meta.FileName))
	}

	if _, err := io.Copy(w, result.Stream); err != nil {
		h.logger.Warn("asset stream interrupted", "uri", sourceURI, "error", err)
	}
}

// parseTransformParams reads the w/h/fit/format/q query parameters.
func parseTransformParams(r *http.Request) (*assetproc.Resize, *assetproc.Convert) {
	query := r.URL.Query()

	var resize *assetproc.Resize
	width := queryInt(r, "w")
	height := queryInt(r, "h")
	if width > 0 || height > 0 {
		resize = &assetproc.Resize{
			Width:  width,
			Height: height,
			Fit:    assetproc.FitMode(query.Get("fit")),
		}
	}

	var convert *assetproc.Convert
	if format := query.Get("format"); format != "" {
		convert = &assetproc.Convert{
			Format:  format,
			Quality: queryInt(r, "q"),
		}
	}
	return resize, convert
}
