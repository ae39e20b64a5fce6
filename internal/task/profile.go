// Package task defines the immutable task profile that drives one pipeline
// run. A profile is created once from an incoming task description and never
// mutated afterward.
package task

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/strataforge/strata/internal/budget"
	"github.com/strataforge/strata/internal/errors"
)

// Word caps for profile text fields. Overlong fields are truncated with a
// recorded warning rather than rejected.
const (
	MaxTitleWords   = 12
	MaxSummaryWords = 60
)

// Type classifies a task. Unknown types fall back to TypeFeature.
type Type string

const (
	TypeFeature  Type = "feature"
	TypeBugfix   Type = "bugfix"
	TypeRefactor Type = "refactor"
	TypeDocs     Type = "docs"
	TypeInfra    Type = "infra"
)

// knownTypes lists all valid task types.
var knownTypes = map[Type]bool{
	TypeFeature:  true,
	TypeBugfix:   true,
	TypeRefactor: true,
	TypeDocs:     true,
	TypeInfra:    true,
}

// Profile is an immutable description of one task.
type Profile struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	TaskType           Type     `json:"task_type"`
	DomainKeywords     []string `json:"domain_keywords"`     // ordered, normalized, deduplicated
	AcceptanceKeywords []string `json:"acceptance_keywords"` // ordered, normalized, deduplicated
}

// profileFile is the on-disk YAML shape of a task profile.
type profileFile struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Summary            string   `yaml:"summary"`
	Type               string   `yaml:"type"`
	DomainKeywords     []string `yaml:"domain_keywords"`
	AcceptanceKeywords []string `yaml:"acceptance_keywords"`
}

// New builds a Profile from raw fields, normalizing keyword sets and
// truncating overlong title/summary. Returned warnings document every
// degradation applied; an empty slice means the inputs were taken verbatim.
func New(id, title, summary string, taskType Type, domainKeywords, acceptanceKeywords []string) (*Profile, []string, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil, errors.NewInvalidRequest("task id is required")
	}
	if strings.TrimSpace(title) == "" {
		return nil, nil, errors.NewInvalidRequest("task title is required")
	}

	var warnings []string

	if taskType == "" {
		taskType = TypeFeature
	}
	if !knownTypes[taskType] {
		warnings = append(warnings, "unknown task type "+string(taskType)+"; using feature")
		taskType = TypeFeature
	}

	title, truncated := capWords(title, MaxTitleWords)
	if truncated {
		warnings = append(warnings, "title truncated to the first words within the cap")
	}
	summary, truncated = capWords(summary, MaxSummaryWords)
	if truncated {
		warnings = append(warnings, "summary truncated to the first words within the cap")
	}

	return &Profile{
		ID:                 strings.TrimSpace(id),
		Title:              title,
		Summary:            summary,
		TaskType:           taskType,
		DomainKeywords:     normalizeSet(domainKeywords),
		AcceptanceKeywords: normalizeSet(acceptanceKeywords),
	}, warnings, nil
}

// Load reads a task profile from a YAML file.
func Load(path string) (*Profile, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.NewInvalidRequest("cannot read task file: " + err.Error())
	}
	return Parse(data)
}

// Parse builds a task profile from YAML text.
func Parse(data []byte) (*Profile, []string, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, errors.NewInvalidRequest("cannot parse task text: " + err.Error())
	}

	return New(f.ID, f.Title, f.Summary, Type(f.Type), f.DomainKeywords, f.AcceptanceKeywords)
}

// Keywords returns the union of domain and acceptance keywords, domain
// keywords first, preserving order and uniqueness.
func (p *Profile) Keywords() []string {
	return normalizeSet(append(append([]string{}, p.DomainKeywords...), p.AcceptanceKeywords...))
}

// DomainTags returns the task's inferred domain as a tag set: each domain
// keyword plus its hyphen-separated parts, normalized. Scoring uses this for
// domain-alignment gating.
func (p *Profile) DomainTags() []string {
	var tags []string
	for _, kw := range p.DomainKeywords {
		tags = append(tags, kw)
		tags = append(tags, strings.Split(kw, "-")...)
	}
	return normalizeSet(tags)
}

// capWords truncates s to at most n words. Reports whether truncation occurred.
func capWords(s string, n int) (string, bool) {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " "), false
	}
	return strings.Join(words[:n], " "), true
}

// normalizeSet normalizes entries and removes empties and duplicates while
// preserving first-seen order.
func normalizeSet(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		norm := budget.Normalize(item)
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
