package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strataforge/strata/internal/artifact"
	"github.com/strataforge/strata/internal/budget"
	"github.com/strataforge/strata/internal/rules"
)

var testRules = []rules.Rule{
	{ID: "docs:1", SourceLocator: "docs.md", ConstraintText: "Markdown output must pass the linter."},
	{ID: "quality:1", SourceLocator: "quality.md", ConstraintText: "All code must reach 80% test coverage."},
}

// compliantArtifact cites every test rule verbatim.
func compliantArtifact() *artifact.Artifact {
	return buildArtifact(
		section("Objective", "Render markdown tables."),
		section("Applicable Rules",
			"- [docs:1] Markdown output must pass the linter. (docs.md)\n"+
				"- [quality:1] All code must reach 80% test coverage. (quality.md)"),
	)
}

func section(heading, body string) artifact.Section {
	return artifact.Section{
		Heading:   heading,
		Body:      body,
		TokenCost: budget.Estimate(heading + " " + body),
	}
}

func buildArtifact(sections ...artifact.Section) *artifact.Artifact {
	return &artifact.Artifact{ID: "t-1-prp", Template: "feature", Sections: sections}
}

func TestValidate_CompliantArtifact(t *testing.T) {
	rep := Validate(compliantArtifact(), testRules)

	require.True(t, rep.Compliant)
	require.Empty(t, rep.Violations)
	require.Equal(t, 100, rep.OverallScore)
	for _, s := range rep.SectionScores {
		require.Equal(t, 100, s.Score, s.Heading)
	}
}

func TestValidate_MissingCitation(t *testing.T) {
	art := buildArtifact(
		section("Objective", "Render markdown tables."),
		section("Applicable Rules", "- [docs:1] Markdown output must pass the linter. (docs.md)"),
	)

	rep := Validate(art, testRules)

	require.False(t, rep.Compliant)
	require.Len(t, rep.Violations, 1)
	require.Equal(t, "quality:1", rep.Violations[0].RuleID)
	require.Equal(t, "Applicable Rules", rep.Violations[0].Section)
	require.Equal(t, "rule is not cited", rep.Violations[0].Reason)
	require.Less(t, rep.OverallScore, 100)
}

func TestValidate_ParaphrasedCitationRejected(t *testing.T) {
	art := buildArtifact(
		section("Applicable Rules", "- [docs:1] Markdown should be linted. (docs.md)"),
	)

	rep := Validate(art, testRules[:1])

	require.False(t, rep.Compliant)
	require.Len(t, rep.Violations, 1)
	require.Equal(t, "docs:1", rep.Violations[0].RuleID)
	require.Equal(t, "citation text does not match the rule verbatim", rep.Violations[0].Reason)
}

func TestValidate_UnresolvedPlaceholderPenalized(t *testing.T) {
	art := compliantArtifact()
	art.Sections = append(art.Sections, section("Deliverable", "{{deliverable_path}}"))
	art.UnresolvedPlaceholders = []string{"deliverable_path"}

	rep := Validate(art, testRules)

	require.False(t, rep.Compliant)
	require.Len(t, rep.Violations, 1)
	require.Empty(t, rep.Violations[0].RuleID)
	require.Equal(t, "Deliverable", rep.Violations[0].Section)
	require.Contains(t, rep.Violations[0].Reason, "{{deliverable_path}}")

	for _, s := range rep.SectionScores {
		if s.Heading == "Deliverable" {
			require.Equal(t, 80, s.Score)
		}
	}
}

func TestValidate_ViolationOrderIsStable(t *testing.T) {
	art := buildArtifact(
		section("Objective", "{{task_summary}}"),
		section("Deliverable", "{{deliverable_path}}"),
	)
	art.UnresolvedPlaceholders = []string{"deliverable_path", "task_summary"}

	rep := Validate(art, testRules)

	// Rule findings first in rule order, then placeholders in section order.
	require.Len(t, rep.Violations, 4)
	require.Equal(t, "docs:1", rep.Violations[0].RuleID)
	require.Equal(t, "quality:1", rep.Violations[1].RuleID)
	require.Contains(t, rep.Violations[2].Reason, "task_summary")
	require.Contains(t, rep.Violations[3].Reason, "deliverable_path")
}

func TestValidate_ScoreFloorsAtZero(t *testing.T) {
	art := buildArtifact(section("Body", "no citations at all"))

	longRules := make([]rules.Rule, 8)
	for i := range longRules {
		longRules[i] = rules.Rule{ID: "r:" + string(rune('1'+i)), ConstraintText: "x"}
	}

	rep := Validate(art, longRules)

	require.Equal(t, 0, rep.SectionScores[0].Score)
	require.Equal(t, 0, rep.OverallScore)
}

func TestValidate_ByteIdenticalReports(t *testing.T) {
	art := compliantArtifact()
	art.Sections = append(art.Sections, section("Deliverable", "{{deliverable_path}}"))
	art.UnresolvedPlaceholders = []string{"deliverable_path"}

	first, err := json.Marshal(Validate(art, testRules))
	require.NoError(t, err)
	second, err := json.Marshal(Validate(art, testRules))
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestValidate_NoRulesNoSections(t *testing.T) {
	rep := Validate(buildArtifact(), nil)

	require.True(t, rep.Compliant)
	require.Zero(t, rep.OverallScore)
	require.Empty(t, rep.SectionScores)
}
