// Package scan extracts structural signals from a project tree and
// compresses them into a budgeted context layer. Only structure is observed:
// path shapes, recurring name suffixes, declared manifest versions. File
// contents are never read beyond manifest version lines.
package scan

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/strataforge/strata/internal/budget"
	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/score"
	"github.com/strataforge/strata/internal/stack"
	"github.com/strataforge/strata/internal/task"
)

// NoObservationsFact is the single fact emitted for an empty or inaccessible
// root, so downstream consumers can distinguish "checked, found nothing"
// from "not checked".
const NoObservationsFact = "No project observations: root empty or inaccessible."

// DirectoryView is a bounded, read-only traversal handle over a project
// root. Ignored names are skipped wherever they appear.
type DirectoryView struct {
	Root     string
	MaxDepth int
	Ignored  []string
}

// defaultIgnored are always skipped in addition to the caller's list.
var defaultIgnored = []string{".git", "node_modules", "vendor", ".idea", ".vscode"}

// manifestFiles maps well-known build manifests to a short label.
var manifestFiles = map[string]string{
	"go.mod":         "Go module",
	"package.json":   "Node package",
	"pyproject.toml": "Python project",
	"Cargo.toml":     "Rust crate",
	"Makefile":       "Make build",
	"Dockerfile":     "Container build",
}

// minSuffixCount is how often a name suffix must recur before it counts as a
// convention worth reporting.
const minSuffixCount = 2

// Result carries the scan layer plus the degradation record of its
// construction.
type Result struct {
	Layer stack.Layer `json:"layer"`

	// Observed is the number of candidate facts before compression.
	Observed int `json:"observed"`

	// Warnings records unreadable subtrees. Never fatal.
	Warnings []string `json:"warnings,omitempty"`
}

// Scan traverses the view, ranks the extracted facts against the profile
// with the shared scoring primitive, and greedily compresses them under
// cfg.ScanLayerBudget. The resulting layer is never empty and never exceeds
// its ceiling, regardless of project size.
func Scan(cfg *config.Config, profile *task.Profile, view DirectoryView) *Result {
	res := &Result{}

	facts := collectFacts(view, res)
	res.Observed = len(facts)

	if len(facts) == 0 {
		res.Layer = stack.NewLayer(stack.LayerDomain, []string{NoObservationsFact})
		return res
	}

	// Rank by relevance descending; ties keep discovery order (stable sort
	// over the alphabetical traversal).
	type ranked struct {
		fact  string
		score int
	}
	rankedFacts := make([]ranked, len(facts))
	for i, f := range facts {
		rankedFacts[i] = ranked{fact: f, score: score.Relevance(cfg, profile, f)}
	}
	sort.SliceStable(rankedFacts, func(i, j int) bool {
		return rankedFacts[i].score > rankedFacts[j].score
	})

	ordered := make([]string, len(rankedFacts))
	for i, r := range rankedFacts {
		ordered[i] = r.fact
	}

	res.Layer = stack.NewTruncatedLayer(stack.LayerDomain, ordered, cfg.ScanLayerBudget)
	return res
}

// collectFacts walks the view and extracts structural candidate facts in
// deterministic (alphabetical) order.
func collectFacts(view DirectoryView, res *Result) []string {
	ignored := make(map[string]bool, len(view.Ignored)+len(defaultIgnored))
	for _, name := range defaultIgnored {
		ignored[name] = true
	}
	for _, name := range view.Ignored {
		ignored[strings.TrimSpace(name)] = true
	}

	maxDepth := view.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}

	var (
		topDirs      []string
		manifests    []string
		suffixCounts = map[string]int{}
		dirShapes    = map[string]bool{}
	)

	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unreadable directory %s: %v", dir, err))
			return
		}

		for _, entry := range entries {
			name := entry.Name()
			if ignored[name] || strings.HasPrefix(name, ".") {
				continue
			}

			if entry.IsDir() {
				if depth == 1 {
					topDirs = append(topDirs, name)
				}
				rel, err := filepath.Rel(view.Root, filepath.Join(dir, name))
				if err == nil && strings.Count(rel, string(filepath.Separator)) == 1 {
					// Two-level shape like internal/<pkg> or cmd/<binary>
					parent := filepath.Dir(rel)
					dirShapes[parent+string(filepath.Separator)+"<name>"] = true
				}
				if depth < maxDepth {
					walk(filepath.Join(dir, name), depth+1)
				}
				continue
			}

			if label, ok := manifestFiles[name]; ok && depth == 1 {
				manifests = append(manifests, manifestFact(filepath.Join(dir, name), name, label))
			}
			if suffix := nameSuffix(name); suffix != "" {
				suffixCounts[suffix]++
			}
		}
	}
	walk(view.Root, 1)

	var facts []string
	if len(topDirs) > 0 {
		sort.Strings(topDirs)
		facts = append(facts, "Top-level directories: "+strings.Join(topDirs, ", ")+".")
	}

	sort.Strings(manifests)
	facts = append(facts, manifests...)

	shapes := make([]string, 0, len(dirShapes))
	for shape := range dirShapes {
		shapes = append(shapes, shape)
	}
	sort.Strings(shapes)
	for _, shape := range shapes {
		facts = append(facts, "Path shape: "+shape+".")
	}

	suffixes := make([]string, 0, len(suffixCounts))
	for suffix, count := range suffixCounts {
		if count >= minSuffixCount {
			suffixes = append(suffixes, fmt.Sprintf("Recurring file suffix %s (%d files).", suffix, count))
		}
	}
	sort.Strings(suffixes)
	facts = append(facts, suffixes...)

	return facts
}

// manifestFact builds a fact for a build manifest, including its declared
// version when one is declared on a single line near the top.
func manifestFact(path, name, label string) string {
	if version := declaredVersion(path, name); version != "" {
		return fmt.Sprintf("%s manifest %s (version %s).", label, name, version)
	}
	return fmt.Sprintf("%s manifest %s.", label, name)
}

// declaredVersion extracts a declared toolchain/package version from the
// first lines of a known manifest. Anything else in the file is ignored.
func declaredVersion(path, name string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for lines := 0; scanner.Scan() && lines < 20; lines++ {
		line := strings.TrimSpace(scanner.Text())
		switch name {
		case "go.mod":
			if v, ok := strings.CutPrefix(line, "go "); ok {
				return budget.Normalize(v)
			}
		case "package.json", "pyproject.toml", "Cargo.toml":
			if v, ok := cutVersionField(line); ok {
				return v
			}
		}
	}
	return ""
}

// cutVersionField extracts the value of a `"version": "x"` or `version = "x"` line.
func cutVersionField(line string) (string, bool) {
	lower := strings.ToLower(line)
	if !strings.HasPrefix(lower, `"version"`) && !strings.HasPrefix(lower, "version") {
		return "", false
	}
	parts := strings.FieldsFunc(line, func(r rune) bool { return r == '"' || r == '\'' })
	// The version value is the first quoted field that looks like a number.
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v != "" && v[0] >= '0' && v[0] <= '9' {
			return v, true
		}
	}
	return "", false
}

// nameSuffix returns a convention-bearing suffix of a file name: a trailing
// underscore segment plus extension (handler_test.go → _test.go), or the
// bare extension for names without one.
func nameSuffix(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}

	base := strings.TrimSuffix(name, ext)
	if idx := strings.LastIndex(base, "_"); idx >= 0 {
		return base[idx:] + ext
	}
	return ext
}
