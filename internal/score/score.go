// Package score ranks skill descriptors against a task profile using a
// transparent, rule-based heuristic: tokenize, weighted overlap, domain-tag
// gating. No learned model, no randomness; identical inputs always produce
// identical scores.
package score

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/strataforge/strata/internal/budget"
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/skills"
	"github.com/strataforge/strata/internal/task"
)

// FallbackNoSkills tags a selection in which no descriptor met the inclusion
// threshold. An empty selection is a first-class outcome, never an error.
const FallbackNoSkills = "proceed-without-skills"

// ScoredSkill pairs a descriptor with its task-specific relevance. Derived
// per task and never cached across tasks.
type ScoredSkill struct {
	Descriptor skills.Descriptor `json:"descriptor"`
	Score      int               `json:"score"` // 0-100
	Rationale  string            `json:"rationale"`

	// OverlapCount is the number of profile keywords matched; used as the
	// first tie-break during selection.
	OverlapCount int `json:"overlap_count"`
}

// Selection is the result of scoring and filtering a catalog.
type Selection struct {
	// Scored holds every descriptor's score in catalog declaration order.
	Scored []ScoredSkill `json:"scored"`

	// Selected holds at most cfg.MaxSkills entries at or above the
	// inclusion threshold, ranked best first.
	Selected []ScoredSkill `json:"selected"`

	// FallbackStrategy is set when Selected is empty.
	FallbackStrategy string `json:"fallback_strategy,omitempty"`
}

// wordPattern extracts alphanumeric word tokens from normalized text.
var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// Rank scores every descriptor against the profile and applies the selection
// policy: keep at most cfg.MaxSkills descriptors scoring at or above
// cfg.ScoreThreshold; ties broken by overlap count, then by catalog
// declaration order.
func Rank(cfg *config.Config, profile *task.Profile, descriptors []skills.Descriptor) *Selection {
	sel := &Selection{
		Scored: make([]ScoredSkill, 0, len(descriptors)),
	}

	for _, d := range descriptors {
		sel.Scored = append(sel.Scored, scoreOne(cfg, profile, d))
	}

	// Candidates at or above threshold, in declaration order
	candidates := make([]ScoredSkill, 0, len(sel.Scored))
	for _, s := range sel.Scored {
		if s.Score >= cfg.ScoreThreshold {
			candidates = append(candidates, s)
		}
	}

	// Stable sort preserves declaration order as the final tie-break
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].OverlapCount > candidates[j].OverlapCount
	})

	if len(candidates) > cfg.MaxSkills {
		candidates = candidates[:cfg.MaxSkills]
	}

	if len(candidates) == 0 {
		sel.FallbackStrategy = FallbackNoSkills
		return sel
	}
	sel.Selected = candidates
	return sel
}

// scoreOne computes the weighted keyword overlap for a single descriptor.
//
// Each profile keyword contributes PhraseWeight when it is a multi-word
// phrase found verbatim in the descriptor text, or TokenWeight when it is a
// single token present in the text's token set. The raw sum is normalized
// against the maximum attainable sum for this profile, then scaled 0-100.
// A descriptor whose domain tags share nothing with the task's domain is
// multiplied by DomainMismatchPenalty: domain alignment comes before lexical
// overlap.
func scoreOne(cfg *config.Config, profile *task.Profile, d skills.Descriptor) ScoredSkill {
	keywords := profile.Keywords()
	text := budget.Normalize(d.MatchText())
	tokens := tokenSet(text)

	raw, maxRaw, matched := 0, 0, 0
	phraseMatches := 0
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			maxRaw += cfg.PhraseWeight
			if strings.Contains(text, kw) {
				raw += cfg.PhraseWeight
				matched++
				phraseMatches++
			}
			continue
		}

		maxRaw += cfg.TokenWeight
		if tokens[kw] {
			raw += cfg.TokenWeight
			matched++
		}
	}

	score := 0.0
	if maxRaw > 0 {
		score = float64(raw) / float64(maxRaw) * 100
	}

	aligned := domainsAligned(profile, &d)
	if !aligned {
		score *= cfg.DomainMismatchPenalty
	}

	return ScoredSkill{
		Descriptor:   d,
		Score:        int(score + 0.5),
		OverlapCount: matched,
		Rationale:    rationale(matched, len(keywords), phraseMatches, aligned),
	}
}

// Relevance scores a free-text fact against the profile with the same
// weighted-overlap primitive used for descriptors, without domain gating.
// The scanner shares this to rank structural facts.
func Relevance(cfg *config.Config, profile *task.Profile, text string) int {
	keywords := profile.Keywords()
	norm := budget.Normalize(text)
	tokens := tokenSet(norm)

	raw, maxRaw := 0, 0
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			maxRaw += cfg.PhraseWeight
			if strings.Contains(norm, kw) {
				raw += cfg.PhraseWeight
			}
			continue
		}
		maxRaw += cfg.TokenWeight
		if tokens[kw] {
			raw += cfg.TokenWeight
		}
	}

	if maxRaw == 0 {
		return 0
	}
	return int(float64(raw)/float64(maxRaw)*100 + 0.5)
}

// domainsAligned reports whether the descriptor's domain tags intersect the
// task's inferred domain. A descriptor with no tags, or a task with no
// domain keywords, is treated as aligned: the gate only fires on a positive
// mismatch between two declared domains.
func domainsAligned(profile *task.Profile, d *skills.Descriptor) bool {
	taskTags := profile.DomainTags()
	skillTags := d.TagTokens()
	if len(taskTags) == 0 || len(skillTags) == 0 {
		return true
	}

	set := make(map[string]bool, len(taskTags))
	for _, tag := range taskTags {
		set[tag] = true
	}
	for _, tag := range skillTags {
		if set[tag] {
			return true
		}
	}
	return false
}

// tokenSet builds the word-token set of normalized text. Hyphenated words
// contribute both the whole and their parts.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range wordPattern.FindAllString(text, -1) {
		set[tok] = true
	}
	for _, field := range strings.Fields(text) {
		if strings.Contains(field, "-") {
			set[strings.Trim(field, ".,;:!?")] = true
		}
	}
	return set
}

// rationale renders a short, auditable explanation of a score.
func rationale(matched, total, phrases int, aligned bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "matched %d/%d keywords", matched, total)
	if phrases > 0 {
		fmt.Fprintf(&sb, " (%d phrase)", phrases)
	}
	if aligned {
		sb.WriteString("; domains aligned")
	} else {
		sb.WriteString("; domain mismatch penalty applied")
	}
	return sb.String()
}

// Summaries renders one-line summaries of selected skills for inclusion in a
// context layer.
func Summaries(selected []ScoredSkill) []string {
	lines := make([]string, 0, len(selected))
	for _, s := range selected {
		desc := s.Descriptor.Description
		if desc == "" {
			desc = "no description"
		}
		lines = append(lines, fmt.Sprintf("Skill %s: %s", s.Descriptor.Name, desc))
	}
	return lines
}
