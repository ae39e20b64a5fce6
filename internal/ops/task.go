// Package ops implements the operations shared by the CLI and MCP surfaces.
// Each operation takes an Input struct and returns an Output struct;
// context is threaded through operations that touch the database.
package ops

import (
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/strataforge/strata/internal/task"
)

// TaskSpec describes a task by file, by raw YAML text, or by inline fields,
// in that precedence order. A missing inline ID is generated.
type TaskSpec struct {
	File string `json:"file,omitempty"`
	Text string `json:"text,omitempty"`

	ID                 string   `json:"id,omitempty"`
	Title              string   `json:"title,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Type               string   `json:"type,omitempty"`
	DomainKeywords     []string `json:"domain_keywords,omitempty"`
	AcceptanceKeywords []string `json:"acceptance_keywords,omitempty"`
}

// resolveProfile builds the task profile from a spec.
func resolveProfile(spec TaskSpec) (*task.Profile, []string, error) {
	if strings.TrimSpace(spec.File) != "" {
		return task.Load(spec.File)
	}
	if strings.TrimSpace(spec.Text) != "" {
		return task.Parse([]byte(spec.Text))
	}

	id := spec.ID
	if strings.TrimSpace(id) == "" {
		id = "task-" + ulid.Make().String()
	}
	return task.New(id, spec.Title, spec.Summary, task.Type(spec.Type), spec.DomainKeywords, spec.AcceptanceKeywords)
}
