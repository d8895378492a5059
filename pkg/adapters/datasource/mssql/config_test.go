package mssql

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_SQLAuth(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "sql.example.com",
		"port":     float64(14330),
		"database": "sales",
		"user":     "sa",
		"password": "secret",
		"encrypt":  "false",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthMethodSQL, cfg.AuthMethod)
	assert.Equal(t, "sa", cfg.Username)
	assert.Equal(t, 14330, cfg.Port)
	assert.Equal(t, "sales", cfg.Database)
	assert.False(t, cfg.Encrypt)
}

func TestFromMap_ServicePrincipal(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":          "srv.database.windows.net",
		"client_id":     "app",
		"tenant_id":     "tenant",
		"client_secret": "shh",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthMethodServicePrincipal, cfg.AuthMethod)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.True(t, cfg.Encrypt)
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		errMsg string
	}{
		{"missing host", map[string]any{"user": "sa"}, "host is required"},
		{"no credentials", map[string]any{"host": "h"}, "could not auto-detect auth method"},
		{"unknown auth", map[string]any{"host": "h", "auth_method": "kerberos"}, "invalid auth method"},
		{"incomplete principal", map[string]any{"host": "h", "client_id": "app"}, "tenant_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBuildConnectionString(t *testing.T) {
	sqlCfg := &Config{
		Host: "db", Port: 1433, Database: "sales", AuthMethod: AuthMethodSQL,
		Username: "user", Password: "p@ss", Encrypt: true, ConnectionTimeout: 15,
	}
	driver, dsn := buildConnectionString(sqlCfg)
	assert.Equal(t, "sqlserver", driver)
	assert.True(t, strings.HasPrefix(dsn, "sqlserver://user:p%40ss@db:1433?"))

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sales", u.Query().Get("database"))
	assert.Equal(t, "15", u.Query().Get("connection timeout"))

	spCfg := sqlCfg.WithDatabase("other")
	spCfg.AuthMethod = AuthMethodServicePrincipal
	spCfg.ClientID, spCfg.TenantID, spCfg.ClientSecret = "app", "tenant", "shh"
	driver, dsn = buildConnectionString(spCfg)
	assert.Equal(t, "azuresql", driver)

	u, err = url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "ActiveDirectoryServicePrincipal", u.Query().Get("fedauth"))
	assert.Equal(t, "other", u.Query().Get("database"))
	assert.Equal(t, "sales", sqlCfg.Database)
}
