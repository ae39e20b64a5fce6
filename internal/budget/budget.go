// Package budget provides the single token-measurement function and the
// priority-greedy truncation routine shared by every pipeline stage. Using
// one fixed counting function keeps budgets comparable across stages.
package budget

import (
	"math"
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize normalizes a string for matching:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
// 3. Collapse internal whitespace to single spaces
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// Estimate returns the token-equivalent cost of text using a word-based
// heuristic (1.3x multiplier on word count). Any deterministic text-length
// proxy would do; this one is applied uniformly by all stages.
func Estimate(text string) int {
	words := strings.Fields(strings.TrimSpace(text))
	return int(math.Ceil(float64(len(words)) * 1.3))
}

// EstimateAll returns the summed token cost of a list of facts.
func EstimateAll(facts []string) int {
	total := 0
	for _, f := range facts {
		total += Estimate(f)
	}
	return total
}

// TakeGreedy accumulates facts in order until the running token cost would
// exceed ceiling, dropping the remainder. Facts must be pre-sorted by
// priority descending; the caller's sort order is the tie-break rule.
// Returns the kept facts and the count of dropped facts.
//
// A fact whose cost alone exceeds the remaining room is dropped rather than
// split; later (cheaper) facts may still fit. This keeps each kept fact
// intact and the result a strict subset of the input.
func TakeGreedy(facts []string, ceiling int) (kept []string, dropped int) {
	if ceiling <= 0 {
		return nil, len(facts)
	}

	kept = make([]string, 0, len(facts))
	running := 0
	for _, f := range facts {
		cost := Estimate(f)
		if running+cost > ceiling {
			dropped++
			continue
		}
		running += cost
		kept = append(kept, f)
	}

	if len(kept) == 0 {
		return nil, dropped
	}
	return kept, dropped
}
