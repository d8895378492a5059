package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/services"
)

// SearchHandler handles search index maintenance requests.
type SearchHandler struct {
	searchService services.SearchService
	logger        *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchService services.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// RegisterRoutes registers the search handler's routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search/reindex", h.Reindex)
}

// Reindex handles POST /api/search/reindex
// Runs synchronously; per-document failures are reported in the summary.
func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	summary, err := h.searchService.ReindexAll(r.Context())
	if err != nil {
		writeServiceError(w, err, "search index", "rebuild", h.logger)
		return
	}
	writeData(w, http.StatusOK, summary, h.logger)
}
