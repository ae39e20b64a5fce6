// Package artifact renders a task briefing document from a template keyed by
// task type. Placeholders are substituted from pipeline outputs; unresolved
// placeholders are recorded rather than fatal, and the rendered document is
// kept under the artifact budget by dropping narrative sections before
// essential ones.
package artifact

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/strataforge/strata/internal/budget"
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/rules"
	"github.com/strataforge/strata/internal/score"
	"github.com/strataforge/strata/internal/stack"
	"github.com/strataforge/strata/internal/task"
)

//go:embed templates/*.md
var templateFS embed.FS

// fallbackTemplate is used when no template matches the task type.
const fallbackTemplate = "default"

// placeholderPattern matches {{name}} tokens inside template text.
var placeholderPattern = regexp.MustCompile(`\{\{([a-z0-9_]+)\}\}`)

// essentialSections are never dropped before narrative sections when the
// rendered document exceeds the artifact budget.
var essentialSections = map[string]bool{
	"Objective":           true,
	"Deliverable":         true,
	"Acceptance Criteria": true,
}

// Template is a parsed artifact template: a title line plus named sections.
type Template struct {
	Name     string
	Title    string
	Sections []TemplateSection
}

// TemplateSection is one "## heading" block of a template.
type TemplateSection struct {
	Heading string
	Body    string
}

// Registry holds parsed templates keyed by task type name.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: map[string]*Template{}}
}

// Register adds or replaces a template.
func (r *Registry) Register(tpl *Template) {
	r.templates[tpl.Name] = tpl
}

// LoadEmbedded parses the built-in template set.
func LoadEmbedded() (*Registry, error) {
	reg := NewRegistry()

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	for _, entry := range entries {
		raw, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		tpl, err := Parse(name, string(raw))
		if err != nil {
			return nil, err
		}
		reg.Register(tpl)
	}
	return reg, nil
}

// Parse validates and parses raw template text. A template must open with a
// "# " title line, contain at least one "## " section, and every "{{" must
// open a well-formed placeholder.
func Parse(name, raw string) (*Template, error) {
	if strings.Count(raw, "{{") != len(placeholderPattern.FindAllString(raw, -1)) {
		return nil, errors.NewTemplateInvalid(name, "malformed placeholder")
	}

	tpl := &Template{Name: name}
	var current *TemplateSection
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(body.String())
			tpl.Sections = append(tpl.Sections, *current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "## "):
			flush()
			current = &TemplateSection{Heading: strings.TrimSpace(line[3:])}
		case strings.HasPrefix(line, "# "):
			if tpl.Title != "" {
				return nil, errors.NewTemplateInvalid(name, "multiple title lines")
			}
			tpl.Title = strings.TrimSpace(line[2:])
		default:
			if current != nil {
				body.WriteString(line)
				body.WriteByte('\n')
			}
		}
	}
	flush()

	if tpl.Title == "" {
		return nil, errors.NewTemplateInvalid(name, "missing title line")
	}
	if len(tpl.Sections) == 0 {
		return nil, errors.NewTemplateInvalid(name, "no sections")
	}
	return tpl, nil
}

// Section is one rendered block of a generated artifact.
type Section struct {
	Heading   string `json:"heading"`
	Body      string `json:"body"`
	TokenCost int    `json:"token_cost"`
}

// Artifact is an immutable generated briefing document.
type Artifact struct {
	ID           string    `json:"id"`
	Template     string    `json:"template"`
	FallbackUsed bool      `json:"fallback_used,omitempty"`
	Title        string    `json:"title"`
	Sections     []Section `json:"sections"`

	// UnresolvedPlaceholders lists placeholders with no value, sorted and
	// deduplicated. Non-empty marks the artifact as degraded, not failed.
	UnresolvedPlaceholders []string `json:"unresolved_placeholders,omitempty"`

	// DroppedSections names sections removed to satisfy the budget.
	DroppedSections []string `json:"dropped_sections,omitempty"`

	TokenCost int `json:"token_cost"`
}

// Markdown renders the artifact back to a markdown document.
func (a *Artifact) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# " + a.Title + "\n")
	for _, s := range a.Sections {
		sb.WriteString("\n## " + s.Heading + "\n\n" + s.Body + "\n")
	}
	return sb.String()
}

// Input carries the pipeline outputs an artifact is rendered from.
type Input struct {
	Profile *task.Profile
	Stack   *stack.Stack
	Rules   []rules.Rule // domain-matched rules, cited by ID
	Skills  []score.ScoredSkill

	// Values supplies caller-provided placeholder values such as
	// deliverable_path. Built-in values take precedence on collision.
	Values map[string]string
}

// Generate renders the template matching the task type, substituting
// placeholders and enforcing cfg.ArtifactBudget. Unresolved placeholders and
// dropped sections are recorded on the artifact; only a missing template or
// invalid input is an error.
func Generate(cfg *config.Config, reg *Registry, in Input) (*Artifact, error) {
	if in.Profile == nil {
		return nil, errors.NewInvalidRequest("task profile is required")
	}

	tpl, fallback := reg.lookup(string(in.Profile.TaskType))
	if tpl == nil {
		return nil, errors.NewTemplateInvalid(string(in.Profile.TaskType), "no template registered and no fallback available")
	}

	vals := buildValues(in)
	unresolved := map[string]bool{}
	resolve := func(text string) string {
		return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
			name := placeholderPattern.FindStringSubmatch(m)[1]
			if v, ok := vals[name]; ok {
				return v
			}
			unresolved[name] = true
			return m
		})
	}

	art := &Artifact{
		ID:           in.Profile.ID + "-prp",
		Template:     tpl.Name,
		FallbackUsed: fallback,
		Title:        resolve(tpl.Title),
	}

	sections := make([]Section, len(tpl.Sections))
	for i, ts := range tpl.Sections {
		body := resolve(ts.Body)
		sections[i] = Section{
			Heading:   ts.Heading,
			Body:      body,
			TokenCost: budget.Estimate(ts.Heading + " " + body),
		}
	}

	art.Sections, art.DroppedSections, art.TokenCost = fitBudget(sections, art.Title, cfg.ArtifactBudget)

	for name := range unresolved {
		art.UnresolvedPlaceholders = append(art.UnresolvedPlaceholders, name)
	}
	sort.Strings(art.UnresolvedPlaceholders)

	return art, nil
}

// lookup resolves a template for a task type, falling back to the default
// template. Reports whether the fallback was used.
func (r *Registry) lookup(taskType string) (*Template, bool) {
	if tpl, ok := r.templates[taskType]; ok {
		return tpl, false
	}
	return r.templates[fallbackTemplate], true
}

// fitBudget keeps sections under ceiling by greedy selection with essential
// sections ranked ahead of narrative ones. Kept sections retain document
// order.
func fitBudget(sections []Section, title string, ceiling int) ([]Section, []string, int) {
	order := make([]int, 0, len(sections))
	for i, s := range sections {
		if essentialSections[s.Heading] {
			order = append(order, i)
		}
	}
	for i, s := range sections {
		if !essentialSections[s.Heading] {
			order = append(order, i)
		}
	}

	running := budget.Estimate(title)
	kept := make(map[int]bool, len(sections))
	var droppedNames []string
	for _, idx := range order {
		cost := sections[idx].TokenCost
		if running+cost > ceiling {
			droppedNames = append(droppedNames, sections[idx].Heading)
			continue
		}
		running += cost
		kept[idx] = true
	}

	result := make([]Section, 0, len(kept))
	for i, s := range sections {
		if kept[i] {
			result = append(result, s)
		}
	}
	sort.Strings(droppedNames)
	return result, droppedNames, running
}

// buildValues assembles the placeholder value map from pipeline outputs.
// Caller-provided extras fill only names the pipeline does not define.
func buildValues(in Input) map[string]string {
	vals := make(map[string]string, len(in.Values)+8)
	for k, v := range in.Values {
		vals[budget.Normalize(k)] = v
	}

	p := in.Profile
	vals["task_title"] = p.Title
	vals["task_type"] = string(p.TaskType)

	summary := p.Summary
	if summary == "" {
		summary = "No summary provided."
	}
	vals["task_summary"] = summary

	vals["acceptance_criteria"] = bullets(p.AcceptanceKeywords, "None declared.")

	ruleLines := make([]string, 0, len(in.Rules))
	for _, r := range in.Rules {
		ruleLines = append(ruleLines, fmt.Sprintf("[%s] %s (%s)", r.ID, r.ConstraintText, r.SourceLocator))
	}
	vals["rule_citations"] = bullets(ruleLines, "No rules apply to this task.")

	vals["skill_summaries"] = bullets(score.Summaries(in.Skills), "No skills selected; strategy: "+score.FallbackNoSkills+".")

	var facts []string
	if in.Stack != nil {
		facts = in.Stack.Domain.Content
	}
	vals["project_facts"] = bullets(facts, "No project observations.")

	return vals
}

// bullets renders lines as a markdown list, or the placeholder line when empty.
func bullets(lines []string, empty string) string {
	if len(lines) == 0 {
		return "- " + empty
	}
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- " + line)
	}
	return sb.String()
}
