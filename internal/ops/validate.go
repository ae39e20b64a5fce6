package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"

	"github.com/strataforge/strata/internal/artifact"
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/db"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/rules"
	"github.com/strataforge/strata/internal/validate"
)

// ValidateInput checks an artifact against the rule corpus. The artifact
// comes from a stored run (RunID) or a JSON file (ArtifactFile); exactly one
// must be set. When a task is supplied, only domain-matching rules apply;
// otherwise the whole corpus does.
type ValidateInput struct {
	RunID        string   `json:"run_id,omitempty"`
	ArtifactFile string   `json:"artifact_file,omitempty"`
	RulesDir     string   `json:"rules_dir"`
	Task         TaskSpec `json:"task,omitempty"`
}

// ValidateOutput is the compliance report plus loading warnings.
type ValidateOutput struct {
	Report   *validate.Report `json:"report"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Validate re-runs compliance validation against the current rule corpus.
func Validate(ctx context.Context, database *sql.DB, cfg *config.Config, in ValidateInput) (*ValidateOutput, error) {
	art, err := loadArtifact(ctx, database, in)
	if err != nil {
		return nil, err
	}

	corpus, err := rules.LoadDir(in.RulesDir)
	if err != nil {
		return nil, err
	}

	applicable := corpus.Rules
	if hasTask(in.Task) {
		profile, _, err := resolveProfile(in.Task)
		if err != nil {
			return nil, err
		}
		applicable = rules.MatchDomain(corpus.Rules, profile.DomainTags())
	}

	return &ValidateOutput{
		Report:   validate.Validate(art, applicable),
		Warnings: corpus.Warnings,
	}, nil
}

// loadArtifact resolves the artifact from a stored run or a JSON file.
func loadArtifact(ctx context.Context, database *sql.DB, in ValidateInput) (*artifact.Artifact, error) {
	switch {
	case in.RunID != "" && in.ArtifactFile != "":
		return nil, errors.NewInvalidRequest("run_id and artifact_file are mutually exclusive")
	case in.RunID != "":
		run, err := db.GetRunByPrefix(ctx, database, in.RunID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, errors.NewNotFound(in.RunID)
			}
			return nil, errors.NewInternal(err)
		}
		var art artifact.Artifact
		if err := json.Unmarshal([]byte(run.ArtifactJSON), &art); err != nil {
			return nil, errors.NewInternal(err)
		}
		return &art, nil
	case in.ArtifactFile != "":
		data, err := os.ReadFile(in.ArtifactFile)
		if err != nil {
			return nil, errors.NewInvalidRequest("cannot read artifact file: " + err.Error())
		}
		var art artifact.Artifact
		if err := json.Unmarshal(data, &art); err != nil {
			return nil, errors.NewInvalidRequest("cannot parse artifact file: " + err.Error())
		}
		return &art, nil
	default:
		return nil, errors.NewInvalidRequest("run_id or artifact_file is required")
	}
}

// hasTask reports whether the spec identifies a task at all.
func hasTask(spec TaskSpec) bool {
	return strings.TrimSpace(spec.File) != "" ||
		strings.TrimSpace(spec.Text) != "" ||
		strings.TrimSpace(spec.Title) != ""
}
