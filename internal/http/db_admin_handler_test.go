package http

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newDBAdminRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewDBAdminHandler(nil, "panel")
	r := gin.New()
	r.GET("/tables/:table/schema", h.GetTableSchema)
	r.GET("/tables/:table/rows", h.QueryRows)
	return r
}

func TestDBAdminRejectsUnregisteredTables(t *testing.T) {
	r := newDBAdminRouter()

	// The allowlist check runs before any query is built, so a nil pool
	// proves nothing reached the database.
	for _, path := range []string{
		"/tables/pg_shadow/rows",
		"/tables/pg_authid/schema",
		"/tables/regions/rows",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != 404 {
			t.Errorf("GET %s = %d, want 404", path, w.Code)
		}
	}
}

func TestDBAdminTableRegistry(t *testing.T) {
	for _, name := range []string{"users", "servers", "payments", "domains", "deployments", "server_events"} {
		reg, ok := panelTables[name]
		if !ok {
			t.Errorf("table %q missing from registry", name)
			continue
		}
		if reg.defaultSort == "" {
			t.Errorf("table %q has no default sort column", name)
		}
	}
}

func TestIsSensitiveColumn(t *testing.T) {
	masked := []string{"ssh_password", "password_hash", "internal_secret", "api_key", "provider_token"}
	for _, col := range masked {
		if !isSensitiveColumn(col) {
			t.Errorf("expected %q masked", col)
		}
	}

	clear := []string{"ip_address", "droplet_id", "ssh_username", "ssl_status", "plan"}
	for _, col := range clear {
		if isSensitiveColumn(col) {
			t.Errorf("expected %q visible", col)
		}
	}
}
