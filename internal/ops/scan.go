package ops

import (
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/scan"
	"github.com/strataforge/strata/internal/stack"
	"github.com/strataforge/strata/internal/task"
)

// ScanInput extracts a budgeted context layer from a project tree.
type ScanInput struct {
	Task     TaskSpec `json:"task"`
	Root     string   `json:"root"`
	MaxDepth int      `json:"max_depth,omitempty"` // 0 means cfg.ScanMaxDepth
	Ignored  []string `json:"ignored,omitempty"`
}

// ScanOutput reports the compressed layer and what was observed.
type ScanOutput struct {
	Profile  *task.Profile `json:"profile"`
	Layer    stack.Layer   `json:"layer"`
	Observed int           `json:"observed"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Scan builds the project-observation layer for a task. The task profile is
// needed because facts are ranked by task relevance before compression.
func Scan(cfg *config.Config, in ScanInput) (*ScanOutput, error) {
	profile, warnings, err := resolveProfile(in.Task)
	if err != nil {
		return nil, err
	}

	maxDepth := in.MaxDepth
	if maxDepth <= 0 {
		maxDepth = cfg.ScanMaxDepth
	}

	res := scan.Scan(cfg, profile, scan.DirectoryView{
		Root:     in.Root,
		MaxDepth: maxDepth,
		Ignored:  in.Ignored,
	})

	return &ScanOutput{
		Profile:  profile,
		Layer:    res.Layer,
		Observed: res.Observed,
		Warnings: append(warnings, res.Warnings...),
	}, nil
}
