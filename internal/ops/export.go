package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/db"
	"github.com/strataforge/strata/internal/errors"
)

// ExportInput writes stored runs to a JSONL file, one run per line.
type ExportInput struct {
	// BaseDir is the Strata data directory; its exports/ subdirectory is
	// always a permitted target.
	BaseDir string `json:"base_dir"`

	// Path is the target file. Empty means BaseDir/exports/runs.jsonl.
	Path string `json:"path,omitempty"`

	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ExportOutput reports where runs were written.
type ExportOutput struct {
	Path     string `json:"path"`
	Exported int    `json:"exported"`
}

// Export writes run records as JSONL. Targets outside the exports directory
// must be allowlisted in cfg.AllowedPaths unless cfg.AllowUnsafePaths is set.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, in ExportInput) (*ExportOutput, error) {
	target := in.Path
	if target == "" {
		target = filepath.Join(in.BaseDir, "exports", "runs.jsonl")
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid export path: " + err.Error())
	}
	if err := checkExportPath(cfg, in.BaseDir, absTarget); err != nil {
		return nil, err
	}

	runs, err := db.ListRuns(ctx, database, in.Status, in.Limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := os.MkdirAll(filepath.Dir(absTarget), 0700); err != nil {
		return nil, errors.NewInternal(err)
	}
	f, err := os.OpenFile(absTarget, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, run := range runs {
		if err := enc.Encode(run); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	return &ExportOutput{Path: absTarget, Exported: len(runs)}, nil
}

// checkExportPath enforces the export target allowlist.
func checkExportPath(cfg *config.Config, baseDir, absTarget string) error {
	if cfg.AllowUnsafePaths {
		return nil
	}

	allowed := make([]string, 0, len(cfg.AllowedPaths)+1)
	if baseDir != "" {
		allowed = append(allowed, filepath.Join(baseDir, "exports"))
	}
	allowed = append(allowed, cfg.AllowedPaths...)

	for _, root := range allowed {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if absTarget == absRoot || strings.HasPrefix(absTarget, absRoot+string(filepath.Separator)) {
			return nil
		}
	}
	return errors.NewInvalidRequest(fmt.Sprintf("export path %s is outside the allowed directories", absTarget))
}
