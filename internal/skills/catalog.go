// Package skills loads skill catalog metadata. Only the YAML frontmatter
// header of each SKILL.md is parsed; skill bodies are a larger resource that
// collaborators fetch on demand, never this package.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/strataforge/strata/internal/budget"
)

// Descriptor is the immutable metadata header of one skill.
type Descriptor struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	DomainTags         []string `json:"domain_tags"`
	ActivationCriteria string   `json:"activation_criteria"`
	Path               string   `json:"path"` // opaque locator of the full skill body
}

// Catalog is a read-only, deterministically ordered set of descriptors.
// Order is name ascending (ties by path), which serves as the declaration
// order for scoring tie-breaks.
type Catalog struct {
	Descriptors []Descriptor `json:"descriptors"`

	// Warnings records every skipped or degraded entry. Missing or
	// unreadable metadata never fails the batch.
	Warnings []string `json:"warnings,omitempty"`
}

// frontmatter is the YAML header shape of a SKILL.md file.
type frontmatter struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	DomainTags         []string `yaml:"domain_tags"`
	ActivationCriteria string   `yaml:"activation_criteria"`
}

// frontmatterPattern matches a leading YAML frontmatter block.
var frontmatterPattern = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n`)

// Scan indexes every skill under root. Each immediate subdirectory holding a
// SKILL.md (or skill.md) contributes one descriptor. A missing root is not
// an error: it yields an empty catalog with a recorded warning, so callers
// can distinguish "checked, found nothing" from a hard failure.
func Scan(root string) (*Catalog, error) {
	cat := &Catalog{}

	entries, err := os.ReadDir(root)
	if err != nil {
		cat.Warnings = append(cat.Warnings, fmt.Sprintf("skill root %s unreadable: %v", root, err))
		return cat, nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		skillDir := filepath.Join(root, entry.Name())
		skillFile, ok := findSkillFile(skillDir)
		if !ok {
			continue
		}

		desc, warn := parseHeader(skillFile, entry.Name())
		if warn != "" {
			cat.Warnings = append(cat.Warnings, warn)
			continue
		}
		cat.Descriptors = append(cat.Descriptors, desc)
	}

	// Deterministic declaration order: name, then path
	sort.Slice(cat.Descriptors, func(i, j int) bool {
		a, b := cat.Descriptors[i], cat.Descriptors[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Path < b.Path
	})

	return cat, nil
}

// findSkillFile locates SKILL.md (preferred) or skill.md in dir.
func findSkillFile(dir string) (string, bool) {
	for _, name := range []string{"SKILL.md", "skill.md"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// parseHeader reads only the frontmatter block of a skill file and builds a
// descriptor. The returned warning is non-empty when the entry must be
// skipped.
func parseHeader(path, dirName string) (Descriptor, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Sprintf("skill %s unreadable: %v", dirName, err)
	}

	// Strip UTF-8 BOM if present
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	match := frontmatterPattern.FindSubmatch(data)
	if match == nil {
		return Descriptor{}, fmt.Sprintf("skill %s has no metadata header", dirName)
	}

	var fm frontmatter
	if err := yaml.Unmarshal(match[1], &fm); err != nil {
		return Descriptor{}, fmt.Sprintf("skill %s has a malformed metadata header: %v", dirName, err)
	}

	name := strings.TrimSpace(fm.Name)
	if name == "" {
		name = dirName
	}

	return Descriptor{
		Name:               name,
		Description:        strings.TrimSpace(fm.Description),
		DomainTags:         normalizeTags(fm.DomainTags),
		ActivationCriteria: strings.TrimSpace(fm.ActivationCriteria),
		Path:               path,
	}, ""
}

// TagTokens returns the descriptor's domain tags expanded with their
// hyphen-separated parts, for alignment checks against a task's domain.
func (d *Descriptor) TagTokens() []string {
	var tokens []string
	for _, tag := range d.DomainTags {
		tokens = append(tokens, tag)
		tokens = append(tokens, strings.Split(tag, "-")...)
	}

	seen := make(map[string]bool, len(tokens))
	result := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		result = append(result, tok)
	}
	return result
}

// MatchText returns the free text a relevance scorer matches keywords
// against: description plus activation criteria.
func (d *Descriptor) MatchText() string {
	return strings.TrimSpace(d.Description + " " + d.ActivationCriteria)
}

// normalizeTags normalizes, deduplicates, and drops empty tags, preserving order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		norm := budget.Normalize(tag)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		result = append(result, norm)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
