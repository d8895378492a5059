package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/services"
)

// CreateChorusViewRequest for POST body.
type CreateChorusViewRequest struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// SchemasHandler handles schema HTTP requests.
type SchemasHandler struct {
	schemaService  services.SchemaService
	datasetService services.DatasetService
	logger         *zap.Logger
}

// NewSchemasHandler creates a new schemas handler.
func NewSchemasHandler(schemaService services.SchemaService, datasetService services.DatasetService, logger *zap.Logger) *SchemasHandler {
	return &SchemasHandler{
		schemaService:  schemaService,
		datasetService: datasetService,
		logger:         logger,
	}
}

// RegisterRoutes registers the schemas handler's routes on the given mux.
func (h *SchemasHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schemas/{id}", h.Get)
	mux.HandleFunc("GET /api/schemas/{id}/datasets", h.ListDatasets)
	mux.HandleFunc("POST /api/schemas/{id}/stale", h.MarkStale)
	mux.HandleFunc("DELETE /api/schemas/{id}/stale", h.MarkFresh)
	mux.HandleFunc("POST /api/schemas/{id}/refresh", h.Refresh)
	mux.HandleFunc("POST /api/schemas/{id}/chorus_views", h.CreateChorusView)
}

// Get handles GET /api/schemas/{id}
func (h *SchemasHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSchemaID(w, r, h.logger)
	if !ok {
		return
	}

	schema, err := h.schemaService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "schema", "get", h.logger)
		return
	}
	writeData(w, http.StatusOK, toSchemaResponse(schema), h.logger)
}

// ListDatasets handles GET /api/schemas/{id}/datasets
func (h *SchemasHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSchemaID(w, r, h.logger)
	if !ok {
		return
	}

	datasets, err := h.datasetService.ListBySchema(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "datasets", "list", h.logger)
		return
	}
	data := make([]DatasetResponse, len(datasets))
	for i, ds := range datasets {
		data[i] = toDatasetResponse(ds)
	}
	writeData(w, http.StatusOK, data, h.logger)
}

// MarkStale handles POST /api/schemas/{id}/stale
func (h *SchemasHandler) MarkStale(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSchemaID(w, r, h.logger)
	if !ok {
		return
	}

	schema, err := h.schemaService.MarkStale(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "schema", "mark stale", h.logger)
		return
	}
	writeData(w, http.StatusOK, toSchemaResponse(schema), h.logger)
}

// MarkFresh handles DELETE /api/schemas/{id}/stale
func (h *SchemasHandler) MarkFresh(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSchemaID(w, r, h.logger)
	if !ok {
		return
	}

	schema, err := h.schemaService.MarkFresh(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "schema", "mark fresh", h.logger)
		return
	}
	writeData(w, http.StatusOK, toSchemaResponse(schema), h.logger)
}

// Refresh handles POST /api/schemas/{id}/refresh
func (h *SchemasHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSchemaID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.schemaService.Refresh(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "schema", "refresh", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}

// CreateChorusView handles POST /api/schemas/{id}/chorus_views
func (h *SchemasHandler) CreateChorusView(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSchemaID(w, r, h.logger)
	if !ok {
		return
	}
	var req CreateChorusViewRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	ds, err := h.datasetService.CreateChorusView(r.Context(), id, req.Name, req.Query)
	if err != nil {
		writeServiceError(w, err, "chorus view", "create", h.logger)
		return
	}
	writeData(w, http.StatusCreated, toDatasetResponse(ds), h.logger)
}
