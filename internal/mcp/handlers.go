package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db      *sql.DB
	cfg     *config.Config
	baseDir string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, baseDir string) *Handlers {
	return &Handlers{db: db, cfg: cfg, baseDir: baseDir}
}

// Request types for each tool

// taskFields is embedded by requests that identify a task.
type taskFields struct {
	TaskFile           string   `json:"task_file,omitempty"`
	TaskText           string   `json:"task_text,omitempty"`
	Title              string   `json:"title,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Type               string   `json:"type,omitempty"`
	DomainKeywords     []string `json:"domain_keywords,omitempty"`
	AcceptanceKeywords []string `json:"acceptance_keywords,omitempty"`
}

// spec maps flat task fields to an ops TaskSpec.
func (t taskFields) spec() ops.TaskSpec {
	return ops.TaskSpec{
		File:               t.TaskFile,
		Text:               t.TaskText,
		Title:              t.Title,
		Summary:            t.Summary,
		Type:               t.Type,
		DomainKeywords:     t.DomainKeywords,
		AcceptanceKeywords: t.AcceptanceKeywords,
	}
}

// RunRequest represents the arguments for pipeline_run.
type RunRequest struct {
	taskFields
	SkillsDir       string   `json:"skills_dir,omitempty"`
	RulesDir        string   `json:"rules_dir,omitempty"`
	Root            string   `json:"root,omitempty"`
	MaxDepth        int      `json:"max_depth,omitempty"`
	Ignored         []string `json:"ignored,omitempty"`
	DeliverablePath string   `json:"deliverable_path,omitempty"`
}

// ScoreRequest represents the arguments for skill_score.
type ScoreRequest struct {
	taskFields
	SkillsDir string `json:"skills_dir"`
}

// ScanRequest represents the arguments for context_scan.
type ScanRequest struct {
	taskFields
	Root     string   `json:"root"`
	MaxDepth int      `json:"max_depth,omitempty"`
	Ignored  []string `json:"ignored,omitempty"`
}

// ValidateRequest represents the arguments for artifact_validate.
type ValidateRequest struct {
	taskFields
	RunID        string `json:"run_id,omitempty"`
	ArtifactFile string `json:"artifact_file,omitempty"`
	RulesDir     string `json:"rules_dir"`
}

// ShowRequest represents the arguments for run_show.
type ShowRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for run_list.
type ListRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ExportRequest represents the arguments for run_export.
type ExportRequest struct {
	Path   string `json:"path,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// PurgeRequest represents the arguments for run_purge.
type PurgeRequest struct {
	ID            string `json:"id,omitempty"`
	OlderThanDays int    `json:"older_than_days,omitempty"`
}

// Handler implementations

// HandleRun handles the pipeline_run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Run(ctx, h.db, h.cfg, ops.RunInput{
		Task:            input.spec(),
		SkillsDir:       input.SkillsDir,
		RulesDir:        input.RulesDir,
		Root:            input.Root,
		MaxDepth:        input.MaxDepth,
		Ignored:         input.Ignored,
		DeliverablePath: input.DeliverablePath,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleScore handles the skill_score tool call.
func (h *Handlers) HandleScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Score(h.cfg, ops.ScoreInput{
		Task:      input.spec(),
		SkillsDir: input.SkillsDir,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleScan handles the context_scan tool call.
func (h *Handlers) HandleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Scan(h.cfg, ops.ScanInput{
		Task:     input.spec(),
		Root:     input.Root,
		MaxDepth: input.MaxDepth,
		Ignored:  input.Ignored,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleValidate handles the artifact_validate tool call.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ValidateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Validate(ctx, h.db, h.cfg, ops.ValidateInput{
		RunID:        input.RunID,
		ArtifactFile: input.ArtifactFile,
		RulesDir:     input.RulesDir,
		Task:         input.spec(),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShow handles the run_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Show(ctx, h.db, h.cfg, ops.ShowInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the run_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, h.cfg, ops.ListInput{
		Status: input.Status,
		Limit:  input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the run_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		BaseDir: h.baseDir,
		Path:    input.Path,
		Status:  input.Status,
		Limit:   input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the run_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.db, h.cfg, ops.PurgeInput{
		ID:            input.ID,
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if strataErr, ok := err.(*errors.StrataError); ok {
		errorObj := map[string]any{
			"code":    strataErr.Code,
			"message": strataErr.Message,
			"status":  strataErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if strataErr.Code != errors.ErrInternal && strataErr.Details != nil {
			errorObj["details"] = strataErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
