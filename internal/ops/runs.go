package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/strataforge/strata/internal/artifact"
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/db"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/stack"
	"github.com/strataforge/strata/internal/validate"
)

// ShowInput fetches one stored run by ID or unique prefix.
type ShowInput struct {
	ID string `json:"id"`
}

// ShowOutput is a stored run with its JSON snapshots decoded.
type ShowOutput struct {
	Run      *db.Run            `json:"run"`
	Stack    *stack.Stack       `json:"stack"`
	Artifact *artifact.Artifact `json:"artifact"`
	Report   *validate.Report   `json:"report"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Show fetches and decodes a stored run.
func Show(ctx context.Context, database *sql.DB, cfg *config.Config, in ShowInput) (*ShowOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}

	run, err := db.GetRunByPrefix(ctx, database, strings.TrimSpace(in.ID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFound(in.ID)
		}
		return nil, errors.NewInternal(err)
	}

	out := &ShowOutput{Run: run}
	if err := json.Unmarshal([]byte(run.StackJSON), &out.Stack); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := json.Unmarshal([]byte(run.ArtifactJSON), &out.Artifact); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := json.Unmarshal([]byte(run.ReportJSON), &out.Report); err != nil {
		return nil, errors.NewInternal(err)
	}
	if run.WarningsJSON != "" {
		if err := json.Unmarshal([]byte(run.WarningsJSON), &out.Warnings); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return out, nil
}

// ListInput lists stored runs newest-first.
type ListInput struct {
	Status string `json:"status,omitempty"` // ok | degraded | "" for all
	Limit  int    `json:"limit,omitempty"`  // 0 means no limit
}

// RunSummary is the list view of one run.
type RunSummary struct {
	ID             string `json:"id"`
	TaskID         string `json:"task_id"`
	TaskTitle      string `json:"task_title"`
	TaskType       string `json:"task_type"`
	Status         string `json:"status"`
	TotalTokenCost int    `json:"total_token_cost"`
	OverallScore   int    `json:"overall_score"`
	DroppedFacts   int    `json:"dropped_facts"`
	CreatedAt      int64  `json:"created_at"`
}

// ListOutput holds run summaries.
type ListOutput struct {
	Runs  []RunSummary `json:"runs"`
	Total int          `json:"total"`
}

// List returns stored run summaries.
func List(ctx context.Context, database *sql.DB, cfg *config.Config, in ListInput) (*ListOutput, error) {
	if in.Status != "" && in.Status != db.StatusOK && in.Status != db.StatusDegraded {
		return nil, errors.NewInvalidRequest("status must be ok or degraded")
	}

	runs, err := db.ListRuns(ctx, database, in.Status, in.Limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	out := &ListOutput{Runs: make([]RunSummary, 0, len(runs)), Total: len(runs)}
	for _, run := range runs {
		out.Runs = append(out.Runs, RunSummary{
			ID:             run.ID,
			TaskID:         run.TaskID,
			TaskTitle:      run.TaskTitle,
			TaskType:       run.TaskType,
			Status:         run.Status,
			TotalTokenCost: run.TotalTokenCost,
			OverallScore:   run.OverallScore,
			DroppedFacts:   run.DroppedFacts,
			CreatedAt:      run.CreatedAt,
		})
	}
	return out, nil
}

// PurgeInput removes stored runs. With neither field set, everything goes.
type PurgeInput struct {
	ID            string `json:"id,omitempty"`              // delete one run
	OlderThanDays int    `json:"older_than_days,omitempty"` // delete runs older than N days
}

// PurgeOutput reports how many runs were removed.
type PurgeOutput struct {
	Purged int64 `json:"purged"`
}

// Purge deletes stored runs by ID, by age, or entirely.
func Purge(ctx context.Context, database *sql.DB, cfg *config.Config, in PurgeInput) (*PurgeOutput, error) {
	if in.ID != "" {
		run, err := db.GetRunByPrefix(ctx, database, in.ID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, errors.NewNotFound(in.ID)
			}
			return nil, errors.NewInternal(err)
		}
		deleted, err := db.DeleteRun(ctx, database, run.ID)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if !deleted {
			return nil, errors.NewNotFound(in.ID)
		}
		return &PurgeOutput{Purged: 1}, nil
	}

	var cutoff int64
	if in.OlderThanDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -in.OlderThanDays).Unix()
	}
	purged, err := db.PurgeRuns(ctx, database, cutoff)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &PurgeOutput{Purged: purged}, nil
}
