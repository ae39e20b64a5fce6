package web

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/db"
	"github.com/strataforge/strata/internal/ops"
)

// testServer builds the web handler over a fresh database.
func testServer(t *testing.T) (http.Handler, *sql.DB) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	srv := NewServer(database, config.DefaultConfig(), "test", "127.0.0.1", 0)
	return srv.Handler, database
}

// storeRun executes a minimal pipeline run so pages have data.
func storeRun(t *testing.T, database *sql.DB) string {
	t.Helper()
	out, err := ops.Run(context.Background(), database, config.DefaultConfig(), ops.RunInput{
		Task: ops.TaskSpec{
			ID:             "t-1",
			Title:          "add markdown table rendering",
			DomainKeywords: []string{"markdown"},
		},
	})
	require.NoError(t, err)
	return out.RunID
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleList_Empty(t *testing.T) {
	handler, _ := testServer(t)

	rec := get(t, handler, "/runs")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No runs stored yet")
}

func TestHandleList_ShowsRuns(t *testing.T) {
	handler, database := testServer(t)
	storeRun(t, database)

	rec := get(t, handler, "/runs")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "add markdown table rendering")
}

func TestHandleDetail_RendersArtifact(t *testing.T) {
	handler, database := testServer(t)
	runID := storeRun(t, database)

	rec := get(t, handler, "/runs/"+runID)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Context stack")
	require.Contains(t, body, "<h2>Acceptance Criteria</h2>")
}

func TestHandleDetail_NotFound(t *testing.T) {
	handler, _ := testServer(t)

	rec := get(t, handler, "/runs/absent")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDelete_JSON(t *testing.T) {
	handler, database := testServer(t)
	runID := storeRun(t, database)

	req := httptest.NewRequest(http.MethodDelete, "/runs/"+runID, nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"purged":1`)

	rec = get(t, handler, "/runs/"+runID)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePurge_RequiresConfirm(t *testing.T) {
	handler, database := testServer(t)
	storeRun(t, database)

	req := httptest.NewRequest(http.MethodPost, "/runs/purge", strings.NewReader("older_than_days=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePurge_Redirects(t *testing.T) {
	handler, database := testServer(t)
	storeRun(t, database)

	req := httptest.NewRequest(http.MethodPost, "/runs/purge", strings.NewReader("confirm=true"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/runs", rec.Header().Get("Location"))
}

func TestSecurityHeaders(t *testing.T) {
	handler, _ := testServer(t)

	rec := get(t, handler, "/runs")

	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}
