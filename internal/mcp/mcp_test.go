package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/db"
)

const testSkill = `---
name: markdown-toolkit
description: render markdown tables
domain_tags: [markdown]
activation_criteria: markdown table rendering work
---

Body.
`

func testHandlers(t *testing.T) (*Handlers, string) {
	t.Helper()
	baseDir := t.TempDir()

	database, err := db.Init(baseDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return NewHandlers(database, config.DefaultConfig(), baseDir), baseDir
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultPayload decodes the JSON text content of a tool result.
func resultPayload(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"pipeline_run", "bogus_tool"})
	require.Equal(t, []string{"bogus_tool"}, unknown)
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	require.Len(t, names, 8)
	require.Contains(t, names, "pipeline_run")
	require.Contains(t, names, "artifact_validate")
}

func TestNewServer_WithDisabledTools(t *testing.T) {
	h, baseDir := testHandlers(t)
	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"run_purge"}

	s := NewServer(h.db, cfg, baseDir, "test")
	require.NotNil(t, s)
}

func TestHandleScore(t *testing.T) {
	h, baseDir := testHandlers(t)

	skillDir := filepath.Join(baseDir, "skills", "markdown-toolkit")
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(testSkill), 0600))

	result, err := h.HandleScore(context.Background(), callRequest(map[string]any{
		"title":           "add markdown table rendering",
		"domain_keywords": []any{"markdown"},
		"skills_dir":      filepath.Join(baseDir, "skills"),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	payload := resultPayload(t, result)
	selection := payload["selection"].(map[string]any)
	selected := selection["selected"].([]any)
	require.Len(t, selected, 1)
}

func TestHandleRun_PersistsAndShows(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	result, err := h.HandleRun(ctx, callRequest(map[string]any{
		"title": "add markdown table rendering",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	runID := resultPayload(t, result)["run_id"].(string)
	require.NotEmpty(t, runID)

	shown, err := h.HandleShow(ctx, callRequest(map[string]any{"id": runID}))
	require.NoError(t, err)
	require.False(t, shown.IsError)
}

func TestHandleShow_NotFound(t *testing.T) {
	h, _ := testHandlers(t)

	result, err := h.HandleShow(context.Background(), callRequest(map[string]any{"id": "absent"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	payload := resultPayload(t, result)
	errObj := payload["error"].(map[string]any)
	require.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestHandleList_InvalidStatus(t *testing.T) {
	h, _ := testHandlers(t)

	result, err := h.HandleList(context.Background(), callRequest(map[string]any{"status": "broken"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	payload := resultPayload(t, result)
	errObj := payload["error"].(map[string]any)
	require.Equal(t, "INVALID_REQUEST", errObj["code"])
}

func TestHandleRun_DecodeError(t *testing.T) {
	h, _ := testHandlers(t)

	result, err := h.HandleRun(context.Background(), callRequest(map[string]any{
		"max_depth": "not a number",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
}
