package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/logging"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/services"
)

// DataSourceResponse is a data source with credentials redacted.
type DataSourceResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Config    map[string]any `json:"config"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// ListDataSourcesResponse wraps the data source array.
type ListDataSourcesResponse struct {
	DataSources []DataSourceResponse `json:"data_sources"`
}

// CreateDataSourceRequest for POST body.
type CreateDataSourceRequest struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// TestConnectionRequest for connection testing.
type TestConnectionRequest struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// TestConnectionResponse for connection test result.
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DataSourcesHandler handles data source HTTP requests.
type DataSourcesHandler struct {
	dataSourceService services.DataSourceService
	logger            *zap.Logger
}

// NewDataSourcesHandler creates a new data sources handler.
func NewDataSourcesHandler(dataSourceService services.DataSourceService, logger *zap.Logger) *DataSourcesHandler {
	return &DataSourcesHandler{
		dataSourceService: dataSourceService,
		logger:            logger,
	}
}

// RegisterRoutes registers the data sources handler's routes on the given mux.
func (h *DataSourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/data_sources", h.List)
	mux.HandleFunc("POST /api/data_sources", h.Create)
	mux.HandleFunc("POST /api/data_sources/test", h.TestConnection)
	mux.HandleFunc("GET /api/data_sources/{id}", h.Get)
	mux.HandleFunc("DELETE /api/data_sources/{id}", h.Delete)
}

func toDataSourceResponse(ds *models.DataSource) DataSourceResponse {
	return DataSourceResponse{
		ID:        ds.ID.String(),
		Name:      ds.Name,
		Type:      ds.DataSourceType,
		Config:    logging.SanitizeConfig(ds.Config),
		CreatedAt: ds.CreatedAt.Format(time.RFC3339),
		UpdatedAt: ds.UpdatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/data_sources
func (h *DataSourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.dataSourceService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "data sources", "list", h.logger)
		return
	}

	data := ListDataSourcesResponse{DataSources: make([]DataSourceResponse, len(sources))}
	for i, ds := range sources {
		data.DataSources[i] = toDataSourceResponse(ds)
	}
	writeData(w, http.StatusOK, data, h.logger)
}

// Create handles POST /api/data_sources
func (h *DataSourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDataSourceRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	ds, err := h.dataSourceService.Create(r.Context(), req.Name, req.Type, req.Config)
	if err != nil {
		writeServiceError(w, err, "data source", "create", h.logger)
		return
	}
	writeData(w, http.StatusCreated, toDataSourceResponse(ds), h.logger)
}

// Get handles GET /api/data_sources/{id}
func (h *DataSourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.dataSourceService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "data source", "get", h.logger)
		return
	}
	writeData(w, http.StatusOK, toDataSourceResponse(ds), h.logger)
}

// Delete handles DELETE /api/data_sources/{id}
// Everything cataloged under the data source is removed with it.
func (h *DataSourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.dataSourceService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "data source", "delete", h.logger)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id.String()}, h.logger)
}

// TestConnection handles POST /api/data_sources/test
// A failed connection is reported in the body with status 200.
func (h *DataSourcesHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req TestConnectionRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "missing_type", "Data source type is required", h.logger)
		return
	}

	resp := TestConnectionResponse{Success: true, Message: "Connection successful"}
	if err := h.dataSourceService.TestConnection(r.Context(), req.Type, req.Config); err != nil {
		resp = TestConnectionResponse{Success: false, Message: logging.SanitizeError(err)}
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
