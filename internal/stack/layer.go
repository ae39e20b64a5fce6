// Package stack models budgeted context layers and assembles them into a
// three-layer context stack. Layers are immutable values: token cost is
// always measured from content at construction, never stored independently.
package stack

import "github.com/strataforge/strata/internal/budget"

// LayerName identifies one of the three fixed layers.
type LayerName string

const (
	LayerSystem LayerName = "System"
	LayerDomain LayerName = "Domain"
	LayerTask   LayerName = "Task"
)

// Layer is an immutable, measured list of fact strings.
type Layer struct {
	Name    LayerName `json:"name"`
	Content []string  `json:"content"`

	// TokenCost is the measured cost of Content, recomputed whenever a new
	// layer is constructed.
	TokenCost int `json:"token_cost"`

	// Dropped counts facts removed by truncation while building this layer.
	// A non-zero count marks documented degradation, never silent loss.
	Dropped int `json:"dropped,omitempty"`
}

// NewLayer builds a layer from facts without truncation.
func NewLayer(name LayerName, facts []string) Layer {
	return Layer{
		Name:      name,
		Content:   facts,
		TokenCost: budget.EstimateAll(facts),
	}
}

// NewTruncatedLayer builds a layer by priority-greedy truncation: facts must
// be pre-ranked best first, and the kept prefix-subset stays within ceiling.
func NewTruncatedLayer(name LayerName, facts []string, ceiling int) Layer {
	kept, dropped := budget.TakeGreedy(facts, ceiling)
	return Layer{
		Name:      name,
		Content:   kept,
		TokenCost: budget.EstimateAll(kept),
		Dropped:   dropped,
	}
}

// Stack is the immutable aggregate of exactly three layers. Refinement
// produces a new Stack; a Stack is never edited in place.
type Stack struct {
	System Layer `json:"system"`
	Domain Layer `json:"domain"`
	Task   Layer `json:"task"`

	// TotalTokenCost equals the sum of the three layer costs and never
	// exceeds the global budget the stack was assembled under.
	TotalTokenCost int `json:"total_token_cost"`
}

// newStack builds a stack and measures its total.
func newStack(system, domain, task Layer) *Stack {
	return &Stack{
		System:         system,
		Domain:         domain,
		Task:           task,
		TotalTokenCost: system.TokenCost + domain.TokenCost + task.TokenCost,
	}
}

// DroppedFacts returns the total count of facts dropped across all layers.
func (s *Stack) DroppedFacts() int {
	return s.System.Dropped + s.Domain.Dropped + s.Task.Dropped
}
