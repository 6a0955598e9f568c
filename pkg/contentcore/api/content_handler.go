package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/modularcms/content-core/pkg/contentcore"
)

// ContentHandler serves the content CRUD and search routes.
type ContentHandler struct {
	service contentcore.Service
	logger  *slog.Logger
}

// SearchResponse is the wire shape of a content search result.
type SearchResponse struct {
	Hits []*contentcore.ContentWrapper `json:"hits"`
	Meta ResultMeta                    `json:"meta"`
}

// ResultMeta carries paging information.
type ResultMeta struct {
	Total int `json:"total"`
}

// ContentInputRequest is the body of an insert or update.
type ContentInputRequest struct {
	Data contentcore.ContentData `json:"data"`
	Meta struct {
		Locale string             `json:"locale,omitempty"`
		Status contentcore.Status `json:"status,omitempty"`
	} `json:"meta"`
}

// SearchBody is the body of a POST search, for filters too large or too
// structured for query parameters.
type SearchBody struct {
	Filter contentcore.Filter        `json:"filter,omitempty"`
	Locale string                    `json:"locale,omitempty"`
	Status contentcore.Status        `json:"status,omitempty"`
	Sort   []contentcore.SortField   `json:"sort,omitempty"`
	Limit  int                       `json:"limit,omitempty"`
	Skip   int                       `json:"skip,omitempty"`
}

func (h *ContentHandler) SearchContent(w http.ResponseWriter, r *http.Request) {
	req := contentcore.SearchContentRequest{
		Type:   chi.URLParam(r, "type"),
		Locale: r.URL.Query().Get("locale"),
		Status: contentcore.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Skip:   queryInt(r, "skip"),
	}
	if rawFilter := r.URL.Query().Get("filter"); rawFilter != "" {
		if err := json.Unmarshal([]byte(rawFilter), &req.Filter); err != nil {
			http.Error(w, "invalid filter parameter", http.StatusBadRequest)
			return
		}
	}
	if rawSort := r.URL.Query().Get("sort"); rawSort != "" {
		req.Sort = parseSortParam(rawSort)
	}

	h.search(w, r, req)
}

func (h *ContentHandler) SearchContentBody(w http.ResponseWriter, r *http.Request) {
	var body SearchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.search(w, r, contentcore.SearchContentRequest{
		Type:   chi.URLParam(r, "type"),
		Filter: body.Filter,
		Locale: body.Locale,
		Status: body.Status,
		Sort:   body.Sort,
		Limit:  body.Limit,
		Skip:   body.Skip,
	})
}

func (h *ContentHandler) search(w http.ResponseWriter, r *http.Request, req contentcore.SearchContentRequest) {
	result, err := h.service.SearchContent(r.Context(), req)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, SearchResponse{Hits: result.Hits, Meta: ResultMeta{Total: result.Total}})
}

func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetContent(r.Context(), contentcore.GetContentRequest{
		Type:    chi.URLParam(r, "type"),
		ID:      chi.URLParam(r, "id"),
		Locale:  r.URL.Query().Get("locale"),
		Version: queryInt(r, "version"),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

func (h *ContentHandler) GetContentVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.GetContentVersions(r.Context(),
		chi.URLParam(r, "type"), chi.URLParam(r, "id"), r.URL.Query().Get("locale"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, versions)
}

func (h *ContentHandler) InsertContent(w http.ResponseWriter, r *http.Request) {
	var body ContentInputRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry, err := h.service.InsertContent(r.Context(), chi.URLParam(r, "type"), contentcore.ContentInput{
		Data:   body.Data,
		Locale: body.Meta.Locale,
		Status: body.Meta.Status,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, entry)
}

func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var body ContentInputRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry, err := h.service.UpdateContent(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"), contentcore.ContentInput{
		Data:   body.Data,
		Locale: body.Meta.Locale,
		Status: body.Meta.Status,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

// RemoveContent deletes a whole item, or only the locales/versions named
// in the query parameters.
func (h *ContentHandler) RemoveContent(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	locales := splitParam(r.URL.Query().Get("locales"))
	versions := parseVersionsParam(r.URL.Query().Get("versions"))

	var err error
	if len(locales) > 0 || len(versions) > 0 {
		err = h.service.RemoveContentParts(r.Context(), contentType, id, locales, versions)
	} else {
		err = h.service.RemoveContent(r.Context(), contentType, id)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContentHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	renderDomainError(w, r, err, h.logger)
}

func queryInt(r *http.Request, name string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return value
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseVersionsParam(raw string) []int {
	var versions []int
	for _, part := range splitParam(raw) {
		if v, err := strconv.Atoi(part); err == nil {
			versions = append(versions, v)
		}
	}
	return versions
}

// parseSortParam reads "field:desc,other" style sort expressions.
func parseSortParam(raw string) []contentcore.SortField {
	var sort []contentcore.SortField
	for _, part := range splitParam(raw) {
		field, direction, _ := strings.Cut(part, ":")
		sort = append(sort, contentcore.SortField{
			Field: field,
			Desc:  strings.EqualFold(direction, "desc"),
		})
	}
	return sort
}
