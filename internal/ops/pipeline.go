package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/strataforge/strata/internal/artifact"
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/db"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/rules"
	"github.com/strataforge/strata/internal/scan"
	"github.com/strataforge/strata/internal/score"
	"github.com/strataforge/strata/internal/skills"
	"github.com/strataforge/strata/internal/stack"
	"github.com/strataforge/strata/internal/task"
	"github.com/strataforge/strata/internal/validate"
)

// RunInput drives one full pipeline execution.
type RunInput struct {
	Task      TaskSpec `json:"task"`
	SkillsDir string   `json:"skills_dir,omitempty"`
	RulesDir  string   `json:"rules_dir,omitempty"`
	Root      string   `json:"root,omitempty"`
	MaxDepth  int      `json:"max_depth,omitempty"`
	Ignored   []string `json:"ignored,omitempty"`

	// DeliverablePath fills the artifact's deliverable placeholder.
	DeliverablePath string `json:"deliverable_path,omitempty"`

	// Values supplies additional placeholder values.
	Values map[string]string `json:"values,omitempty"`
}

// RunOutput is the full audit record of one pipeline execution.
type RunOutput struct {
	RunID     string             `json:"run_id"`
	Status    string             `json:"status"` // ok | degraded
	Profile   *task.Profile      `json:"profile"`
	Selection *score.Selection   `json:"selection"`
	Stack     *stack.Stack       `json:"stack"`
	Artifact  *artifact.Artifact `json:"artifact"`
	Report    *validate.Report   `json:"report"`

	// Warnings aggregates every degradation recorded along the way. A run
	// with warnings completes with status degraded, never fails.
	Warnings []string `json:"warnings,omitempty"`
}

// stages holds the intermediate products shared by Run, Assemble, and
// Generate.
type stages struct {
	profile   *task.Profile
	selection *score.Selection
	matched   []rules.Rule
	scanLayer stack.Layer
	warnings  []string
}

// runStages executes the pipeline through skill selection, rule loading, and
// project scanning.
func runStages(cfg *config.Config, in RunInput) (*stages, error) {
	profile, warnings, err := resolveProfile(in.Task)
	if err != nil {
		return nil, err
	}
	st := &stages{profile: profile, warnings: warnings}

	if in.SkillsDir != "" {
		catalog, err := skills.Scan(in.SkillsDir)
		if err != nil {
			return nil, err
		}
		st.warnings = append(st.warnings, catalog.Warnings...)
		st.selection = score.Rank(cfg, profile, catalog.Descriptors)
	} else {
		st.selection = score.Rank(cfg, profile, nil)
	}
	if st.selection.FallbackStrategy != "" {
		st.warnings = append(st.warnings, "no skill met the inclusion threshold; strategy: "+st.selection.FallbackStrategy)
	}

	if in.RulesDir != "" {
		corpus, err := rules.LoadDir(in.RulesDir)
		if err != nil {
			return nil, err
		}
		st.warnings = append(st.warnings, corpus.Warnings...)
		st.matched = rules.MatchDomain(corpus.Rules, profile.DomainTags())
	}

	if in.Root != "" {
		maxDepth := in.MaxDepth
		if maxDepth <= 0 {
			maxDepth = cfg.ScanMaxDepth
		}
		res := scan.Scan(cfg, profile, scan.DirectoryView{
			Root:     in.Root,
			MaxDepth: maxDepth,
			Ignored:  in.Ignored,
		})
		st.warnings = append(st.warnings, res.Warnings...)
		st.scanLayer = res.Layer
	} else {
		st.scanLayer = stack.NewLayer(stack.LayerDomain, nil)
	}

	return st, nil
}

// assembleStack builds the context stack from completed stages.
func assembleStack(cfg *config.Config, st *stages) (*stack.Result, error) {
	return stack.Assemble(cfg, stack.AssembleInput{
		Profile:   st.profile,
		Rules:     st.matched,
		ScanLayer: st.scanLayer,
		Skills:    st.selection.Selected,
	})
}

// generateArtifact renders the briefing artifact from completed stages.
func generateArtifact(cfg *config.Config, st *stages, sk *stack.Stack, in RunInput) (*artifact.Artifact, error) {
	reg, err := artifact.LoadEmbedded()
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(in.Values)+1)
	for k, v := range in.Values {
		values[k] = v
	}
	if in.DeliverablePath != "" {
		values["deliverable_path"] = in.DeliverablePath
	}

	return artifact.Generate(cfg, reg, artifact.Input{
		Profile: st.profile,
		Stack:   sk,
		Rules:   st.matched,
		Skills:  st.selection.Selected,
		Values:  values,
	})
}

// Run executes the full pipeline and persists the run record: select skills,
// load rules, scan the project, assemble the stack, generate the artifact,
// validate it, store the audit row. Degradations downgrade the status to
// degraded; only infeasible budgets and invalid input fail.
func Run(ctx context.Context, database *sql.DB, cfg *config.Config, in RunInput) (*RunOutput, error) {
	st, err := runStages(cfg, in)
	if err != nil {
		return nil, err
	}

	asm, err := assembleStack(cfg, st)
	if err != nil {
		return nil, err
	}
	if asm.DroppedFacts > 0 {
		st.warnings = append(st.warnings, fmt.Sprintf("%d facts dropped to satisfy the global budget", asm.DroppedFacts))
	}

	art, err := generateArtifact(cfg, st, asm.Stack, in)
	if err != nil {
		return nil, err
	}
	if art.FallbackUsed {
		st.warnings = append(st.warnings, "no template for task type "+string(st.profile.TaskType)+"; fallback template used")
	}
	for _, name := range art.UnresolvedPlaceholders {
		st.warnings = append(st.warnings, "unresolved placeholder {{"+name+"}}")
	}
	for _, heading := range art.DroppedSections {
		st.warnings = append(st.warnings, "section dropped to satisfy the artifact budget: "+heading)
	}

	report := validate.Validate(art, st.matched)
	if !report.Compliant {
		st.warnings = append(st.warnings, fmt.Sprintf("%d compliance violations found", len(report.Violations)))
	}

	out := &RunOutput{
		RunID:     ulid.Make().String(),
		Status:    db.StatusOK,
		Profile:   st.profile,
		Selection: st.selection,
		Stack:     asm.Stack,
		Artifact:  art,
		Report:    report,
		Warnings:  st.warnings,
	}
	if len(st.warnings) > 0 {
		out.Status = db.StatusDegraded
	}

	if err := persistRun(ctx, database, out); err != nil {
		return nil, err
	}
	return out, nil
}

// persistRun stores the audit row for a completed run.
func persistRun(ctx context.Context, database *sql.DB, out *RunOutput) error {
	stackJSON, err := json.Marshal(out.Stack)
	if err != nil {
		return errors.NewInternal(err)
	}
	artifactJSON, err := json.Marshal(out.Artifact)
	if err != nil {
		return errors.NewInternal(err)
	}
	reportJSON, err := json.Marshal(out.Report)
	if err != nil {
		return errors.NewInternal(err)
	}
	warningsJSON := ""
	if len(out.Warnings) > 0 {
		data, err := json.Marshal(out.Warnings)
		if err != nil {
			return errors.NewInternal(err)
		}
		warningsJSON = string(data)
	}

	err = db.InsertRun(ctx, database, &db.Run{
		ID:             out.RunID,
		TaskID:         out.Profile.ID,
		TaskTitle:      out.Profile.Title,
		TaskType:       string(out.Profile.TaskType),
		Status:         out.Status,
		StackJSON:      string(stackJSON),
		ArtifactJSON:   string(artifactJSON),
		ReportJSON:     string(reportJSON),
		WarningsJSON:   warningsJSON,
		TotalTokenCost: out.Stack.TotalTokenCost,
		OverallScore:   out.Report.OverallScore,
		DroppedFacts:   out.Stack.DroppedFacts(),
		CreatedAt:      time.Now().Unix(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled("run")
		}
		return errors.NewInternal(err)
	}
	return nil
}

// AssembleInput builds a context stack without generating an artifact.
type AssembleInput struct {
	Task      TaskSpec `json:"task"`
	SkillsDir string   `json:"skills_dir,omitempty"`
	RulesDir  string   `json:"rules_dir,omitempty"`
	Root      string   `json:"root,omitempty"`
	MaxDepth  int      `json:"max_depth,omitempty"`
	Ignored   []string `json:"ignored,omitempty"`
}

// AssembleOutput reports the stack and its degradation record.
type AssembleOutput struct {
	Profile      *task.Profile `json:"profile"`
	Stack        *stack.Stack  `json:"stack"`
	DroppedFacts int           `json:"dropped_facts"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// Assemble runs the pipeline through stack assembly.
func Assemble(cfg *config.Config, in AssembleInput) (*AssembleOutput, error) {
	st, err := runStages(cfg, RunInput{
		Task: in.Task, SkillsDir: in.SkillsDir, RulesDir: in.RulesDir,
		Root: in.Root, MaxDepth: in.MaxDepth, Ignored: in.Ignored,
	})
	if err != nil {
		return nil, err
	}

	asm, err := assembleStack(cfg, st)
	if err != nil {
		return nil, err
	}

	return &AssembleOutput{
		Profile:      st.profile,
		Stack:        asm.Stack,
		DroppedFacts: asm.DroppedFacts,
		Warnings:     st.warnings,
	}, nil
}

// GenerateInput renders an artifact without persisting a run.
type GenerateInput struct {
	RunInput
}

// GenerateOutput reports the artifact and the stack it was rendered from.
type GenerateOutput struct {
	Profile  *task.Profile      `json:"profile"`
	Stack    *stack.Stack       `json:"stack"`
	Artifact *artifact.Artifact `json:"artifact"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Generate runs the pipeline through artifact generation.
func Generate(cfg *config.Config, in GenerateInput) (*GenerateOutput, error) {
	st, err := runStages(cfg, in.RunInput)
	if err != nil {
		return nil, err
	}

	asm, err := assembleStack(cfg, st)
	if err != nil {
		return nil, err
	}

	art, err := generateArtifact(cfg, st, asm.Stack, in.RunInput)
	if err != nil {
		return nil, err
	}

	return &GenerateOutput{
		Profile:  st.profile,
		Stack:    asm.Stack,
		Artifact: art,
		Warnings: st.warnings,
	}, nil
}
