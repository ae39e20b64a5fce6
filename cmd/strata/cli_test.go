package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/db"
	"github.com/strataforge/strata/internal/ops"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database, baseDir
}

// runApp runs the CLI app with the given args and captures stdout.
func runApp(t *testing.T, database *sql.DB, baseDir string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(database, config.DefaultConfig(), baseDir)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"strata"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

// TestParseCSV tests the parseCSV helper function.
func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single keyword", input: "markdown", expected: []string{"markdown"}},
		{name: "multiple keywords", input: "markdown,docs,tables", expected: []string{"markdown", "docs", "tables"}},
		{name: "keywords with spaces", input: " markdown , docs ", expected: []string{"markdown", "docs"}},
		{name: "empty parts filtered", input: "markdown,,docs,", expected: []string{"markdown", "docs"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCSV(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("expected %d parts, got %d", len(tt.expected), len(result))
				return
			}
			for i, part := range result {
				if part != tt.expected[i] {
					t.Errorf("expected part[%d]=%q, got %q", i, tt.expected[i], part)
				}
			}
		})
	}
}

// TestParseDuration tests the parseDuration helper function.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    int
		expectError bool
	}{
		{name: "valid days", input: "7d", expected: 7},
		{name: "zero days", input: "0d", expected: 0},
		{name: "large number", input: "365d", expected: 365},
		{name: "negative days", input: "-7d", expectError: true},
		{name: "no suffix", input: "7", expectError: true},
		{name: "wrong suffix", input: "7h", expectError: true},
		{name: "invalid number", input: "abcd", expectError: true},
		{name: "empty string", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDuration(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

// TestParseValues tests the parseValues helper function.
func TestParseValues(t *testing.T) {
	values, err := parseValues([]string{"deliverable_path=internal/render/table.go", "owner=docs team"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["deliverable_path"] != "internal/render/table.go" {
		t.Errorf("expected deliverable_path value, got %q", values["deliverable_path"])
	}
	if values["owner"] != "docs team" {
		t.Errorf("expected owner value, got %q", values["owner"])
	}

	if _, err := parseValues([]string{"no-equals-sign"}); err == nil {
		t.Error("expected error for malformed pair")
	}

	values, err = parseValues(nil)
	if err != nil || values != nil {
		t.Errorf("expected nil map for empty input, got %v, %v", values, err)
	}
}

// TestCLIRun tests the run command.
func TestCLIRun(t *testing.T) {
	database, baseDir := setupTestDB(t)

	out, err := runApp(t, database, baseDir, "run",
		"--title=add markdown table rendering", "--domain=markdown")
	if err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	var output ops.RunOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.RunID == "" {
		t.Error("expected non-empty run ID")
	}
	if output.Artifact == nil {
		t.Error("expected an artifact in the output")
	}
}

// TestCLIRunStdinTask tests the run command with task YAML piped via stdin.
func TestCLIRunStdinTask(t *testing.T) {
	database, baseDir := setupTestDB(t)

	oldStdin := os.Stdin
	stdinR, stdinW, _ := os.Pipe()
	os.Stdin = stdinR

	go func() {
		_, _ = stdinW.WriteString("id: t-stdin\ntitle: add markdown table rendering\ndomain_keywords: [markdown]\n")
		stdinW.Close()
	}()

	out, err := runApp(t, database, baseDir, "run")

	os.Stdin = oldStdin

	if err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	var output ops.RunOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Profile.ID != "t-stdin" {
		t.Errorf("expected task id t-stdin, got %s", output.Profile.ID)
	}
}

// TestCLIShow tests the show command with a stored run.
func TestCLIShow(t *testing.T) {
	database, baseDir := setupTestDB(t)

	runOut, err := ops.Run(context.Background(), database, config.DefaultConfig(), ops.RunInput{
		Task: ops.TaskSpec{Title: "add markdown table rendering"},
	})
	if err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}

	out, err := runApp(t, database, baseDir, "show", runOut.RunID[:10])
	if err != nil {
		t.Fatalf("show command failed: %v", err)
	}

	var output ops.ShowOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Run.ID != runOut.RunID {
		t.Errorf("expected run ID %s, got %s", runOut.RunID, output.Run.ID)
	}
}

// TestCLIShowMissingID tests that show without an argument fails.
func TestCLIShowMissingID(t *testing.T) {
	database, baseDir := setupTestDB(t)

	_, err := runApp(t, database, baseDir, "show")
	if err == nil {
		t.Fatal("expected error for missing run id")
	}
}

// TestCLIList tests the list command.
func TestCLIList(t *testing.T) {
	database, baseDir := setupTestDB(t)

	_, err := ops.Run(context.Background(), database, config.DefaultConfig(), ops.RunInput{
		Task: ops.TaskSpec{Title: "add markdown table rendering"},
	})
	if err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}

	out, err := runApp(t, database, baseDir, "list")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}

	var output ops.ListOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Total != 1 {
		t.Errorf("expected 1 run, got %d", output.Total)
	}
}

// TestCLIPurge tests the purge command with an age filter.
func TestCLIPurge(t *testing.T) {
	database, baseDir := setupTestDB(t)

	_, err := ops.Run(context.Background(), database, config.DefaultConfig(), ops.RunInput{
		Task: ops.TaskSpec{Title: "add markdown table rendering"},
	})
	if err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}

	// A fresh run is younger than 7 days, so nothing is purged.
	out, err := runApp(t, database, baseDir, "purge", "--older-than=7d")
	if err != nil {
		t.Fatalf("purge command failed: %v", err)
	}
	var output ops.PurgeOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Purged != 0 {
		t.Errorf("expected 0 purged, got %d", output.Purged)
	}

	// Without filters everything goes.
	out, err = runApp(t, database, baseDir, "purge")
	if err != nil {
		t.Fatalf("purge command failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Purged != 1 {
		t.Errorf("expected 1 purged, got %d", output.Purged)
	}
}

// TestCLIPurgeBadDuration tests that an invalid duration is rejected.
func TestCLIPurgeBadDuration(t *testing.T) {
	database, baseDir := setupTestDB(t)

	_, err := runApp(t, database, baseDir, "purge", "--older-than=7h")
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

// TestCLIExport tests the export command with an explicit output path.
func TestCLIExport(t *testing.T) {
	database, baseDir := setupTestDB(t)

	_, err := ops.Run(context.Background(), database, config.DefaultConfig(), ops.RunInput{
		Task: ops.TaskSpec{Title: "add markdown table rendering"},
	})
	if err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}

	out, err := runApp(t, database, baseDir, "export")
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	var output ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Exported != 1 {
		t.Errorf("expected 1 exported, got %d", output.Exported)
	}
	if _, err := os.Stat(output.Path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}
