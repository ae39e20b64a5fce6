package stack

import (
	"github.com/strataforge/strata/internal/budget"
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/rules"
	"github.com/strataforge/strata/internal/score"
	"github.com/strataforge/strata/internal/task"
)

// AssembleInput carries everything the assembler merges. All fields are
// read-only for the duration of the call.
type AssembleInput struct {
	Profile   *task.Profile
	Rules     []rules.Rule
	ScanLayer Layer
	Skills    []score.ScoredSkill
}

// Result pairs the assembled stack with its degradation record.
type Result struct {
	Stack *Stack `json:"stack"`

	// DroppedFacts counts facts removed by truncation across all layers.
	DroppedFacts int `json:"dropped_facts"`
}

// Assemble merges static rules, the scan layer, and the selected skills into
// a three-layer stack under cfg.GlobalBudget.
//
// Layer construction order and truncation precedence are fixed policy:
//
//  1. System: cfg.SystemFacts verbatim. Never truncated; if it alone
//     exceeds the global budget the configuration is infeasible and the
//     call fails.
//  2. Domain: domain-matching rule excerpts, then scan facts, then skill
//     summaries, in that priority order (rules are ground truth and must
//     not be dropped before softer signals). Priority-greedy truncated
//     under its own ceiling, then under whatever room the Task layer
//     leaves.
//  3. Task: the literal task objective and acceptance criteria. Truncated
//     only when it cannot fit the post-System budget by itself.
func Assemble(cfg *config.Config, in AssembleInput) (*Result, error) {
	system := NewLayer(LayerSystem, cfg.SystemFacts)
	if system.TokenCost > cfg.GlobalBudget {
		return nil, errors.NewBudgetInfeasible(string(LayerSystem), system.TokenCost, cfg.GlobalBudget)
	}
	remaining := cfg.GlobalBudget - system.TokenCost

	taskFacts := taskFacts(in.Profile)
	taskCost := budget.EstimateAll(taskFacts)

	domainFacts := domainFacts(in)

	var domain, taskLayer Layer
	if taskCost <= remaining {
		// Task fits whole; Domain takes its own ceiling capped by the room
		// the Task layer leaves.
		taskLayer = NewLayer(LayerTask, taskFacts)
		domainCeiling := min(cfg.ScanLayerBudget, remaining-taskCost)
		domain = NewTruncatedLayer(LayerDomain, domainFacts, domainCeiling)
	} else {
		// Task alone cannot fit: Domain is dropped entirely (every fact
		// recorded as dropped), then Task itself is truncated. Domain is
		// always truncated before Task, never the reverse.
		domain = Layer{Name: LayerDomain, Dropped: len(domainFacts)}
		taskLayer = NewTruncatedLayer(LayerTask, taskFacts, remaining)
	}

	st := newStack(system, domain, taskLayer)
	return &Result{
		Stack:        st,
		DroppedFacts: st.DroppedFacts(),
	}, nil
}

// domainFacts builds the ranked Domain candidate list in fixed priority
// order: matching rules, scan facts, skill summaries.
func domainFacts(in AssembleInput) []string {
	var facts []string

	matched := rules.MatchDomain(in.Rules, in.Profile.DomainTags())
	for _, r := range matched {
		facts = append(facts, "Rule "+r.ID+": "+r.ConstraintText)
	}

	facts = append(facts, in.ScanLayer.Content...)
	facts = append(facts, score.Summaries(in.Skills)...)
	return facts
}

// taskFacts renders the Task layer content: objective first, then acceptance
// criteria. Most specific, least compressible, truncated last.
func taskFacts(p *task.Profile) []string {
	facts := []string{"Objective: " + p.Title + "."}
	if p.Summary != "" {
		facts = append(facts, "Summary: "+p.Summary)
	}
	for _, kw := range p.AcceptanceKeywords {
		facts = append(facts, "Acceptance: "+kw+".")
	}
	return facts
}
