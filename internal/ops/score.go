package ops

import (
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/score"
	"github.com/strataforge/strata/internal/skills"
	"github.com/strataforge/strata/internal/task"
)

// ScoreInput selects skills for a task without running the full pipeline.
type ScoreInput struct {
	Task      TaskSpec `json:"task"`
	SkillsDir string   `json:"skills_dir"`
}

// ScoreOutput reports every descriptor's score and the selection.
type ScoreOutput struct {
	Profile   *task.Profile    `json:"profile"`
	Selection *score.Selection `json:"selection"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// Score loads the skill catalog, scores every descriptor against the task,
// and applies the selection policy. An empty selection is a valid outcome.
func Score(cfg *config.Config, in ScoreInput) (*ScoreOutput, error) {
	profile, warnings, err := resolveProfile(in.Task)
	if err != nil {
		return nil, err
	}

	catalog, err := skills.Scan(in.SkillsDir)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, catalog.Warnings...)

	return &ScoreOutput{
		Profile:   profile,
		Selection: score.Rank(cfg, profile, catalog.Descriptors),
		Warnings:  warnings,
	}, nil
}
