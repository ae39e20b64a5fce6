package web

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /runs: list stored pipeline runs.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	result, err := ops.List(r.Context(), h.db, h.cfg, ops.ListInput{
		Status: status,
		Limit:  parseIntParam(r, "limit", 50),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Runs:   result.Runs,
		Total:  result.Total,
		Status: status,
	})
}

// HandleDetail handles GET /runs/{id}: view one run with its artifact.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run ID is required"))
		return
	}

	run, err := ops.Show(r.Context(), h.db, h.cfg, ops.ShowInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   run.Run.TaskTitle,
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Run:          run,
		ArtifactHTML: renderMarkdown(run.Artifact.Markdown()),
	})
}

// HandleDelete handles DELETE /runs/{id}: remove one stored run.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run ID is required"))
		return
	}

	result, err := ops.Purge(r.Context(), h.db, h.cfg, ops.PurgeInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"purged": result.Purged,
			"id":     id,
		})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/runs", http.StatusFound)
}

// HandlePurge handles POST /runs/purge: remove stored runs in bulk.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	input := ops.PurgeInput{}
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = d
	}

	result, err := ops.Purge(r.Context(), h.db, h.cfg, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{"purged": result.Purged})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/runs", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
