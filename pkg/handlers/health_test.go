package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/config"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	return p.err
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name         string
		db           Pinger
		wantStatus   int
		wantBody     string
		wantDatabase string
	}{
		{"no database", nil, http.StatusOK, "ok", ""},
		{"database ok", &fakePinger{}, http.StatusOK, "ok", "ok"},
		{"database down", &fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "degraded", "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(&config.Config{}, tt.db, zap.NewNop())
			rec := serve(h, http.MethodGet, "/health", nil)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("expected status %q, got %q", tt.wantBody, resp.Status)
			}
			if resp.Database != tt.wantDatabase {
				t.Errorf("expected database %q, got %q", tt.wantDatabase, resp.Database)
			}
		})
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Env: "test"}
	cfg.Search.Enabled = true
	h := NewHealthHandler(cfg, nil, zap.NewNop())

	rec := serve(h, http.MethodGet, "/ping", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var resp PingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Version != "1.2.3" || resp.Environment != "test" {
		t.Errorf("unexpected ping response: %+v", resp)
	}
	if resp.Service != "catalog-engine" {
		t.Errorf("expected service catalog-engine, got %q", resp.Service)
	}
	if !resp.Search {
		t.Error("expected search_enabled true")
	}
	if resp.GoVersion == "" {
		t.Error("expected go_version to be set")
	}
}
