package task

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_HappyPath(t *testing.T) {
	p, warnings, err := New("t-1", "Add markdown parser", "Parse markdown into sections.",
		TypeFeature, []string{"Markdown", "parsing", "markdown"}, []string{"unit tests"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if p.TaskType != TypeFeature {
		t.Errorf("TaskType = %q, want feature", p.TaskType)
	}
	// Normalized and deduplicated, order preserved
	if len(p.DomainKeywords) != 2 || p.DomainKeywords[0] != "markdown" || p.DomainKeywords[1] != "parsing" {
		t.Errorf("DomainKeywords = %v", p.DomainKeywords)
	}
}

func TestNew_MissingID(t *testing.T) {
	if _, _, err := New("", "title", "", TypeFeature, nil, nil); err == nil {
		t.Error("New should fail without an id")
	}
}

func TestNew_MissingTitle(t *testing.T) {
	if _, _, err := New("t-1", "  ", "", TypeFeature, nil, nil); err == nil {
		t.Error("New should fail without a title")
	}
}

func TestNew_UnknownTypeFallsBack(t *testing.T) {
	p, warnings, err := New("t-1", "title", "", Type("banana"), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if p.TaskType != TypeFeature {
		t.Errorf("TaskType = %q, want feature fallback", p.TaskType)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one fallback warning", warnings)
	}
}

func TestNew_TitleTruncated(t *testing.T) {
	longTitle := strings.Repeat("word ", MaxTitleWords+5)

	p, warnings, err := New("t-1", longTitle, "", TypeFeature, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := len(strings.Fields(p.Title)); got != MaxTitleWords {
		t.Errorf("title words = %d, want %d", got, MaxTitleWords)
	}
	if len(warnings) == 0 {
		t.Error("truncation must be recorded as a warning, never silent")
	}
}

func TestKeywords_Union(t *testing.T) {
	p, _, err := New("t-1", "title", "", TypeFeature,
		[]string{"markdown"}, []string{"parsing", "markdown"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	kws := p.Keywords()
	if len(kws) != 2 || kws[0] != "markdown" || kws[1] != "parsing" {
		t.Errorf("Keywords() = %v, want [markdown parsing]", kws)
	}
}

func TestDomainTags_SplitsHyphens(t *testing.T) {
	p, _, err := New("t-1", "title", "", TypeFeature, []string{"markdown-processing"}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tags := p.DomainTags()
	want := map[string]bool{"markdown-processing": true, "markdown": true, "processing": true}
	if len(tags) != len(want) {
		t.Fatalf("DomainTags = %v, want %v", tags, want)
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "task.yaml")

	content := `id: t-42
title: Add markdown parser
summary: Parse markdown documents into sections.
type: feature
domain_keywords:
  - markdown
  - parsing
acceptance_keywords:
  - unit tests
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	p, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if p.ID != "t-42" {
		t.Errorf("ID = %q, want t-42", p.ID)
	}
	if len(p.DomainKeywords) != 2 {
		t.Errorf("DomainKeywords = %v", p.DomainKeywords)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
