package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/modularcms/content-core/pkg/contentcore"
)

const maxUploadMemory = 32 << 20

// AssetHandler serves the asset management routes.
type AssetHandler struct {
	service contentcore.Service
	logger  *slog.Logger
}

// AssetSearchResponse is the wire shape of an asset search result.
type AssetSearchResponse struct {
	Hits []*contentcore.Asset `json:"hits"`
	Meta ResultMeta           `json:"meta"`
}

// UploadAsset accepts a multipart form with a "file" part plus optional
// "title", "fileName", "mimeType", "path" and "contentRef" (JSON) fields.
func (h *AssetHandler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	req := contentcore.UploadAssetRequest{
		Meta: contentcore.AssetMeta{
			Title:    r.FormValue("title"),
			FileName: r.FormValue("fileName"),
			MimeType: r.FormValue("mimeType"),
		},
		Path: r.FormValue("path"),
	}
	if req.Meta.FileName == "" {
		req.Meta.FileName = header.Filename
	}
	if req.Meta.MimeType == "" {
		req.Meta.MimeType = header.Header.Get("Content-Type")
	}
	if header.Size > 0 {
		size := header.Size
		req.Meta.Size = &size
	}
	if rawRef := r.FormValue("contentRef"); rawRef != "" {
		var ref contentcore.AssetContentRef
		if err := json.Unmarshal([]byte(rawRef), &ref); err != nil {
			http.Error(w, "invalid contentRef parameter", http.StatusBadRequest)
			return
		}
		req.ContentRef = &ref
	}

	asset, err := h.service.UploadAsset(r.Context(), file, req)
	if err != nil {
		renderDomainError(w, r, err, h.logger)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, asset)
}

func (h *AssetHandler) SearchAssets(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SearchAssets(r.Context(), contentcore.SearchAssetsRequest{
		MimeType:      r.URL.Query().Get("mimeType"),
		TitleContains: r.URL.Query().Get("title"),
		Limit:         queryInt(r, "limit"),
		Skip:          queryInt(r, "skip"),
	})
	if err != nil {
		renderDomainError(w, r, err, h.logger)
		return
	}
	render.JSON(w, r, AssetSearchResponse{Hits: result.Hits, Meta: ResultMeta{Total: result.Total}})
}

func (h *AssetHandler) RemoveAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
		renderDomainError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
