package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/services"
)

// DatabaseResponse is the API form of a database.
type DatabaseResponse struct {
	ID           string     `json:"id"`
	DataSourceID string     `json:"data_source_id"`
	Name         string     `json:"name"`
	Stale        bool       `json:"stale"`
	StaleAt      *time.Time `json:"stale_at,omitempty"`
}

// SchemaResponse is the API form of a schema.
type SchemaResponse struct {
	ID                        string     `json:"id"`
	DatabaseID                string     `json:"database_id"`
	Name                      string     `json:"name"`
	Stale                     bool       `json:"stale"`
	StaleAt                   *time.Time `json:"stale_at,omitempty"`
	ActiveTablesAndViewsCount int        `json:"active_tables_and_views_count"`
	RefreshedAt               *time.Time `json:"refreshed_at,omitempty"`
}

// CreateDatabaseRequest for POST body.
type CreateDatabaseRequest struct {
	Name string `json:"name"`
}

func toDatabaseResponse(db *models.Database) DatabaseResponse {
	return DatabaseResponse{
		ID:           db.ID.String(),
		DataSourceID: db.DataSourceID.String(),
		Name:         db.Name,
		Stale:        db.StaleAt != nil,
		StaleAt:      db.StaleAt,
	}
}

func toSchemaResponse(s *models.Schema) SchemaResponse {
	return SchemaResponse{
		ID:                        s.ID.String(),
		DatabaseID:                s.DatabaseID.String(),
		Name:                      s.Name,
		Stale:                     s.StaleAt != nil,
		StaleAt:                   s.StaleAt,
		ActiveTablesAndViewsCount: s.ActiveTablesAndViewsCount,
		RefreshedAt:               s.RefreshedAt,
	}
}

// DatabasesHandler handles database HTTP requests.
type DatabasesHandler struct {
	databaseService services.DatabaseService
	logger          *zap.Logger
}

// NewDatabasesHandler creates a new databases handler.
func NewDatabasesHandler(databaseService services.DatabaseService, logger *zap.Logger) *DatabasesHandler {
	return &DatabasesHandler{
		databaseService: databaseService,
		logger:          logger,
	}
}

// RegisterRoutes registers the databases handler's routes on the given mux.
func (h *DatabasesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/data_sources/{id}/databases", h.Create)
	mux.HandleFunc("GET /api/data_sources/{id}/databases", h.List)
	mux.HandleFunc("GET /api/databases/{id}", h.Get)
	mux.HandleFunc("GET /api/databases/{id}/schemas", h.ListSchemas)
	mux.HandleFunc("POST /api/databases/{id}/stale", h.MarkStale)
	mux.HandleFunc("DELETE /api/databases/{id}/stale", h.MarkFresh)
	mux.HandleFunc("POST /api/databases/{id}/refresh", h.Refresh)
}

// Create handles POST /api/data_sources/{id}/databases
func (h *DatabasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	dataSourceID, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}
	var req CreateDatabaseRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	db, err := h.databaseService.Create(r.Context(), dataSourceID, req.Name)
	if err != nil {
		writeServiceError(w, err, "database", "create", h.logger)
		return
	}
	writeData(w, http.StatusCreated, toDatabaseResponse(db), h.logger)
}

// List handles GET /api/data_sources/{id}/databases
func (h *DatabasesHandler) List(w http.ResponseWriter, r *http.Request) {
	dataSourceID, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	dbs, err := h.databaseService.ListByDataSource(r.Context(), dataSourceID)
	if err != nil {
		writeServiceError(w, err, "databases", "list", h.logger)
		return
	}
	data := make([]DatabaseResponse, len(dbs))
	for i, db := range dbs {
		data[i] = toDatabaseResponse(db)
	}
	writeData(w, http.StatusOK, data, h.logger)
}

// Get handles GET /api/databases/{id}
func (h *DatabasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	db, err := h.databaseService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "database", "get", h.logger)
		return
	}
	writeData(w, http.StatusOK, toDatabaseResponse(db), h.logger)
}

// ListSchemas handles GET /api/databases/{id}/schemas
func (h *DatabasesHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	schemas, err := h.databaseService.ListSchemas(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "schemas", "list", h.logger)
		return
	}
	data := make([]SchemaResponse, len(schemas))
	for i, s := range schemas {
		data[i] = toSchemaResponse(s)
	}
	writeData(w, http.StatusOK, data, h.logger)
}

// MarkStale handles POST /api/databases/{id}/stale
// Every schema of the database is marked stale with it.
func (h *DatabasesHandler) MarkStale(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	db, err := h.databaseService.MarkStale(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "database", "mark stale", h.logger)
		return
	}
	writeData(w, http.StatusOK, toDatabaseResponse(db), h.logger)
}

// MarkFresh handles DELETE /api/databases/{id}/stale
func (h *DatabasesHandler) MarkFresh(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	db, err := h.databaseService.MarkFresh(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "database", "mark fresh", h.logger)
		return
	}
	writeData(w, http.StatusOK, toDatabaseResponse(db), h.logger)
}

// Refresh handles POST /api/databases/{id}/refresh?deep=true
func (h *DatabasesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDatabaseID(w, r, h.logger)
	if !ok {
		return
	}

	deep := false
	if v := r.URL.Query().Get("deep"); v != "" {
		var err error
		if deep, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_deep", "deep must be a boolean", h.logger)
			return
		}
	}

	result, err := h.databaseService.Refresh(r.Context(), id, deep)
	if err != nil {
		writeServiceError(w, err, "database", "refresh", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}
