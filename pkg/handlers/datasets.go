package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/services"
)

// DatasetResponse is the API form of a dataset.
type DatasetResponse struct {
	ID       string     `json:"id"`
	SchemaID string     `json:"schema_id"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Query    *string    `json:"query,omitempty"`
	Stale    bool       `json:"stale"`
	StaleAt  *time.Time `json:"stale_at,omitempty"`
}

func toDatasetResponse(ds *models.Dataset) DatasetResponse {
	return DatasetResponse{
		ID:       ds.ID.String(),
		SchemaID: ds.SchemaID.String(),
		Name:     ds.Name,
		Kind:     string(ds.Kind),
		Query:    ds.Query,
		Stale:    ds.StaleAt != nil,
		StaleAt:  ds.StaleAt,
	}
}

// DatasetsHandler handles dataset HTTP requests.
type DatasetsHandler struct {
	datasetService services.DatasetService
	logger         *zap.Logger
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(datasetService services.DatasetService, logger *zap.Logger) *DatasetsHandler {
	return &DatasetsHandler{
		datasetService: datasetService,
		logger:         logger,
	}
}

// RegisterRoutes registers the datasets handler's routes on the given mux.
func (h *DatasetsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasets/{id}", h.Get)
	mux.HandleFunc("DELETE /api/datasets/{id}", h.Destroy)
	mux.HandleFunc("POST /api/datasets/{id}/stale", h.MarkStale)
	mux.HandleFunc("DELETE /api/datasets/{id}/stale", h.MarkFresh)
}

// Get handles GET /api/datasets/{id}
func (h *DatasetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.datasetService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "dataset", "get", h.logger)
		return
	}
	writeData(w, http.StatusOK, toDatasetResponse(ds), h.logger)
}

// Destroy handles DELETE /api/datasets/{id}
func (h *DatasetsHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.datasetService.Destroy(r.Context(), id); err != nil {
		writeServiceError(w, err, "dataset", "destroy", h.logger)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id.String()}, h.logger)
}

// MarkStale handles POST /api/datasets/{id}/stale
func (h *DatasetsHandler) MarkStale(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.datasetService.MarkStale(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "dataset", "mark stale", h.logger)
		return
	}
	writeData(w, http.StatusOK, toDatasetResponse(ds), h.logger)
}

// MarkFresh handles DELETE /api/datasets/{id}/stale
func (h *DatasetsHandler) MarkFresh(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.datasetService.MarkFresh(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "dataset", "mark fresh", h.logger)
		return
	}
	writeData(w, http.StatusOK, toDatasetResponse(ds), h.logger)
}
