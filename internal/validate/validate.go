// Package validate checks a generated artifact against the rules that apply
// to its task. Validation is citation-bound: a rule counts as honored only
// when the artifact cites its ID and quotes its constraint text verbatim.
// The same artifact and rule set always produce a byte-identical report.
package validate

import (
	"fmt"
	"strings"

	"github.com/strataforge/strata/internal/artifact"
	"github.com/strataforge/strata/internal/rules"
)

// Score penalties. Section scores start at 100 and are floored at zero.
const (
	// citationPenalty is deducted per rule that is uncited or cited with
	// text that does not match the rule verbatim.
	citationPenalty = 15

	// placeholderPenalty is deducted per unresolved placeholder left in a
	// section body.
	placeholderPenalty = 20
)

// citationSection is where citation violations land when the artifact has no
// such section of its own.
const citationSection = "Applicable Rules"

// Violation is one ordered finding. RuleID is empty for findings that are
// not bound to a rule, such as unresolved placeholders.
type Violation struct {
	RuleID  string `json:"rule_id,omitempty"`
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

// SectionScore is the compliance score of one artifact section.
type SectionScore struct {
	Heading string `json:"heading"`
	Score   int    `json:"score"` // 0-100

	// Weight is the section's token cost, used for the overall average.
	Weight int `json:"weight"`
}

// Report is the immutable result of validating one artifact.
type Report struct {
	ArtifactID string `json:"artifact_id"`

	// Compliant is true only when no violations were found.
	Compliant bool `json:"compliant"`

	// OverallScore is the token-cost-weighted mean of the section scores.
	OverallScore int `json:"overall_score"`

	SectionScores []SectionScore `json:"section_scores"`

	// Violations are ordered: rule findings in rule order, then unresolved
	// placeholders in section order.
	Violations []Violation `json:"violations,omitempty"`
}

// Validate checks the artifact against the matched rules. It never fails:
// an artifact that honors nothing still yields a report, scored accordingly.
func Validate(art *artifact.Artifact, matched []rules.Rule) *Report {
	rep := &Report{
		ArtifactID:    art.ID,
		SectionScores: make([]SectionScore, len(art.Sections)),
	}

	penalties := make(map[string]int, len(art.Sections))
	sectionIndex := make(map[string]int, len(art.Sections))
	for i, s := range art.Sections {
		rep.SectionScores[i] = SectionScore{Heading: s.Heading, Weight: s.TokenCost}
		sectionIndex[s.Heading] = i
	}

	// Citation findings attach to the citation section when present,
	// otherwise to the first section.
	citationHome := citationSection
	if _, ok := sectionIndex[citationHome]; !ok && len(art.Sections) > 0 {
		citationHome = art.Sections[0].Heading
	}

	for _, rule := range matched {
		section, reason := checkCitation(art, rule)
		if reason == "" {
			continue
		}
		if section == "" {
			section = citationHome
		}
		rep.Violations = append(rep.Violations, Violation{
			RuleID:  rule.ID,
			Section: section,
			Reason:  reason,
		})
		penalties[section] += citationPenalty
	}

	for _, s := range art.Sections {
		for _, name := range unresolvedIn(s.Body, art.UnresolvedPlaceholders) {
			rep.Violations = append(rep.Violations, Violation{
				Section: s.Heading,
				Reason:  fmt.Sprintf("unresolved placeholder {{%s}}", name),
			})
			penalties[s.Heading] += placeholderPenalty
		}
	}

	totalWeight, weightedSum := 0, 0
	for i := range rep.SectionScores {
		score := 100 - penalties[rep.SectionScores[i].Heading]
		if score < 0 {
			score = 0
		}
		rep.SectionScores[i].Score = score

		w := rep.SectionScores[i].Weight
		totalWeight += w
		weightedSum += score * w
	}
	if totalWeight > 0 {
		rep.OverallScore = (weightedSum + totalWeight/2) / totalWeight
	}

	rep.Compliant = len(rep.Violations) == 0
	return rep
}

// checkCitation verifies the rule is cited by ID and quoted verbatim.
// Returns the section holding the citation and an empty reason on success.
func checkCitation(art *artifact.Artifact, rule rules.Rule) (section, reason string) {
	marker := "[" + rule.ID + "]"
	for _, s := range art.Sections {
		idx := strings.Index(s.Body, marker)
		if idx < 0 {
			continue
		}
		// The constraint text must follow the citation marker verbatim.
		if strings.Contains(s.Body[idx:], rule.ConstraintText) {
			return s.Heading, ""
		}
		return s.Heading, "citation text does not match the rule verbatim"
	}
	return "", "rule is not cited"
}

// unresolvedIn returns the recorded unresolved placeholder names that appear
// literally in body, in recorded (sorted) order.
func unresolvedIn(body string, names []string) []string {
	var found []string
	for _, name := range names {
		if strings.Contains(body, "{{"+name+"}}") {
			found = append(found, name)
		}
	}
	return found
}
