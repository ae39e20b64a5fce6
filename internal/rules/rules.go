// Package rules loads the static rule corpus from markdown files. Each list
// item and each paragraph becomes one rule, tagged with the tokens of its
// enclosing heading chain and a source locator for later citation. The
// corpus is read once per pipeline run and treated as read-only ground
// truth.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/strataforge/strata/internal/budget"
)

// Rule is one immutable, citable constraint.
type Rule struct {
	ID             string   `json:"id"`             // "<file-stem>:<ordinal>", stable across loads
	SourceLocator  string   `json:"source_locator"` // file the constraint was excerpted from
	ConstraintText string   `json:"constraint_text"`
	DomainTags     []string `json:"domain_tags,omitempty"`
}

// Corpus is a deterministically ordered, read-only rule set.
type Corpus struct {
	Rules []Rule `json:"rules"`

	// Warnings records missing or unreadable sources. Never fatal: an
	// absent rule directory yields an empty corpus plus a marker.
	Warnings []string `json:"warnings,omitempty"`
}

// LoadDir loads every .md file under dir (non-recursive) in file-name order.
func LoadDir(dir string) (*Corpus, error) {
	corpus := &Corpus{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		corpus.Warnings = append(corpus.Warnings, fmt.Sprintf("rule directory %s unreadable: %v", dir, err))
		return corpus, nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		fileRules, err := loadFile(path)
		if err != nil {
			corpus.Warnings = append(corpus.Warnings, fmt.Sprintf("rule file %s unreadable: %v", name, err))
			continue
		}
		corpus.Rules = append(corpus.Rules, fileRules...)
	}

	return corpus, nil
}

// loadFile extracts rules from one markdown file by walking its AST.
func loadFile(path string) ([]Rule, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	locator := filepath.Base(path)
	stem := strings.TrimSuffix(locator, filepath.Ext(locator))

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var (
		rules   []Rule
		ordinal int
		// headings[level] holds the active heading text per level; tags
		// come from the chain of levels above the current block.
		headings = map[int]string{}
	)

	appendRule := func(constraint string, tags []string) {
		constraint = strings.TrimSpace(constraint)
		if constraint == "" {
			return
		}
		ordinal++
		rules = append(rules, Rule{
			ID:             fmt.Sprintf("%s:%d", stem, ordinal),
			SourceLocator:  locator,
			ConstraintText: constraint,
			DomainTags:     tags,
		})
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			headings[n.Level] = nodeText(n, source)
			// A new heading invalidates deeper levels of the chain
			for level := n.Level + 1; level <= 6; level++ {
				delete(headings, level)
			}
		case *ast.Paragraph:
			appendRule(nodeText(n, source), headingTags(headings))
		case *ast.List:
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				appendRule(nodeText(item, source), headingTags(headings))
			}
		}
	}

	return rules, nil
}

// headingTags derives normalized domain tags from the active heading chain.
func headingTags(headings map[int]string) []string {
	var levels []int
	for level := range headings {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	seen := make(map[string]bool)
	var tags []string
	for _, level := range levels {
		for _, word := range strings.Fields(budget.Normalize(headings[level])) {
			word = strings.Trim(word, ".,;:()&/")
			if word == "" || seen[word] {
				continue
			}
			seen[word] = true
			tags = append(tags, word)
		}
	}
	return tags
}

// nodeText collects the plain text of a node and its descendants.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// MatchDomain returns the rules whose domain tags intersect the given tag
// set, preserving corpus order. Untagged rules apply everywhere and are
// always included; a task with no declared domain gets the whole corpus.
// Exclusion requires a positive mismatch between two declared tag sets.
func MatchDomain(rs []Rule, domainTags []string) []Rule {
	if len(domainTags) == 0 {
		return rs
	}

	set := make(map[string]bool, len(domainTags))
	for _, tag := range domainTags {
		set[tag] = true
	}

	matched := make([]Rule, 0, len(rs))
	for _, r := range rs {
		if len(r.DomainTags) == 0 {
			matched = append(matched, r)
			continue
		}
		for _, tag := range r.DomainTags {
			if set[tag] {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}
