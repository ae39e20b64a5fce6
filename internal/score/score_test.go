package score

import (
	"testing"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/skills"
	"github.com/strataforge/strata/internal/task"
)

// markdownProfile builds the profile used across scoring scenarios.
func markdownProfile(t *testing.T) *task.Profile {
	t.Helper()
	p, _, err := task.New("t-1", "Add markdown parser", "Parse markdown into sections.",
		task.TypeFeature, []string{"markdown", "parsing"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRank_StrongOverlapSelected(t *testing.T) {
	cfg := config.DefaultConfig()
	profile := markdownProfile(t)

	descriptors := []skills.Descriptor{{
		Name:               "markdown-toolkit",
		Description:        "Parsing and transforming markdown documents.",
		DomainTags:         []string{"markdown-processing"},
		ActivationCriteria: "Use when the task involves markdown parsing.",
	}}

	sel := Rank(cfg, profile, descriptors)

	if len(sel.Selected) != 1 {
		t.Fatalf("Selected = %d, want 1; scored: %+v", len(sel.Selected), sel.Scored)
	}
	if sel.Selected[0].Score < 75 {
		t.Errorf("Score = %d, want >= 75", sel.Selected[0].Score)
	}
	if sel.FallbackStrategy != "" {
		t.Errorf("FallbackStrategy = %q, want empty", sel.FallbackStrategy)
	}
}

func TestRank_DomainMismatchDrivesScoreToZero(t *testing.T) {
	cfg := config.DefaultConfig()
	profile := markdownProfile(t)

	descriptors := []skills.Descriptor{{
		Name:               "stripe-integration",
		Description:        "Handling card payments and refunds.",
		DomainTags:         []string{"payment-handling"},
		ActivationCriteria: "Use for billing work.",
	}}

	sel := Rank(cfg, profile, descriptors)

	if len(sel.Selected) != 0 {
		t.Errorf("Selected = %v, want none", sel.Selected)
	}
	if sel.Scored[0].Score > 10 {
		t.Errorf("Score = %d, want near 0", sel.Scored[0].Score)
	}
	if sel.FallbackStrategy != FallbackNoSkills {
		t.Errorf("FallbackStrategy = %q, want %q", sel.FallbackStrategy, FallbackNoSkills)
	}
}

func TestRank_MismatchPenaltyBeatsLexicalOverlap(t *testing.T) {
	// Full keyword overlap, but a declared domain that shares nothing with
	// the task. Domain alignment comes first.
	cfg := config.DefaultConfig()
	profile := markdownProfile(t)

	descriptors := []skills.Descriptor{{
		Name:        "payment-docs",
		Description: "Writing markdown parsing guides for payment APIs.",
		DomainTags:  []string{"payment-handling"},
	}}

	sel := Rank(cfg, profile, descriptors)

	if sel.Scored[0].Score >= cfg.ScoreThreshold {
		t.Errorf("Score = %d, want below threshold despite full overlap", sel.Scored[0].Score)
	}
}

func TestRank_MaxSkillsCap(t *testing.T) {
	cfg := config.DefaultConfig()
	profile := markdownProfile(t)

	mk := func(name string) skills.Descriptor {
		return skills.Descriptor{
			Name:        name,
			Description: "markdown parsing helpers",
			DomainTags:  []string{"markdown"},
		}
	}
	descriptors := []skills.Descriptor{mk("a"), mk("b"), mk("c"), mk("d")}

	sel := Rank(cfg, profile, descriptors)

	if len(sel.Selected) != cfg.MaxSkills {
		t.Errorf("Selected = %d, want MaxSkills = %d", len(sel.Selected), cfg.MaxSkills)
	}
	for _, s := range sel.Selected {
		if s.Score < cfg.ScoreThreshold {
			t.Errorf("selected skill %s scored %d, below threshold", s.Descriptor.Name, s.Score)
		}
	}
}

func TestRank_TieBrokenByDeclarationOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxSkills = 1
	profile := markdownProfile(t)

	// Identical metadata: identical score and overlap. Declaration order
	// (slice order) decides.
	mk := func(name string) skills.Descriptor {
		return skills.Descriptor{
			Name:        name,
			Description: "markdown parsing helpers",
			DomainTags:  []string{"markdown"},
		}
	}
	sel := Rank(cfg, profile, []skills.Descriptor{mk("first"), mk("second")})

	if len(sel.Selected) != 1 || sel.Selected[0].Descriptor.Name != "first" {
		t.Errorf("Selected = %+v, want the first-declared skill", sel.Selected)
	}
}

func TestRank_Deterministic(t *testing.T) {
	cfg := config.DefaultConfig()
	profile := markdownProfile(t)
	descriptors := []skills.Descriptor{
		{Name: "a", Description: "markdown parsing", DomainTags: []string{"markdown"}},
		{Name: "b", Description: "payments", DomainTags: []string{"payments"}},
	}

	first := Rank(cfg, profile, descriptors)
	second := Rank(cfg, profile, descriptors)

	if len(first.Scored) != len(second.Scored) {
		t.Fatal("non-deterministic result length")
	}
	for i := range first.Scored {
		if first.Scored[i].Score != second.Scored[i].Score {
			t.Errorf("score for %s differs between runs", first.Scored[i].Descriptor.Name)
		}
	}
}

func TestRank_PhraseMatchOutweighsTokenMatch(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ScoreThreshold = 1
	cfg.MaxSkills = 2

	p, _, err := task.New("t-2", "Improve error handling", "",
		task.TypeRefactor, []string{"error handling", "logging"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	phraseOnly := skills.Descriptor{Name: "phrase", Description: "structured error handling patterns"}
	tokenOnly := skills.Descriptor{Name: "token", Description: "logging helpers"}

	sel := Rank(cfg, p, []skills.Descriptor{tokenOnly, phraseOnly})

	var phraseScore, tokenScore int
	for _, s := range sel.Scored {
		switch s.Descriptor.Name {
		case "phrase":
			phraseScore = s.Score
		case "token":
			tokenScore = s.Score
		}
	}
	if phraseScore <= tokenScore {
		t.Errorf("phrase match (%d) should outscore token match (%d)", phraseScore, tokenScore)
	}
}

func TestRank_EmptyCatalog(t *testing.T) {
	cfg := config.DefaultConfig()
	sel := Rank(cfg, markdownProfile(t), nil)

	if len(sel.Scored) != 0 || len(sel.Selected) != 0 {
		t.Errorf("expected empty result, got %+v", sel)
	}
	if sel.FallbackStrategy != FallbackNoSkills {
		t.Errorf("FallbackStrategy = %q, want %q", sel.FallbackStrategy, FallbackNoSkills)
	}
}

func TestSummaries(t *testing.T) {
	selected := []ScoredSkill{
		{Descriptor: skills.Descriptor{Name: "markdown-toolkit", Description: "Markdown helpers."}},
		{Descriptor: skills.Descriptor{Name: "bare"}},
	}

	lines := Summaries(selected)

	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0] != "Skill markdown-toolkit: Markdown helpers." {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if lines[1] != "Skill bare: no description" {
		t.Errorf("lines[1] = %q", lines[1])
	}
}
