package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration. Every tuning constant of the
// pipeline (scoring weights, inclusion threshold, layer budgets) is explicit
// here so behavior stays deterministic and documented rather than hard-coded.
type Config struct {
	// ScoreThreshold is the minimum relevance score (0-100) for a skill to
	// be selected. Skills below the threshold are excluded, never errored.
	ScoreThreshold int `json:"score_threshold,omitempty"`

	// MaxSkills is the maximum number of skills selected per task.
	MaxSkills int `json:"max_skills,omitempty"`

	// PhraseWeight is the weight applied to exact multi-word phrase matches
	// during relevance scoring. Must exceed TokenWeight.
	PhraseWeight int `json:"phrase_weight,omitempty"`

	// TokenWeight is the weight applied to single-token matches.
	TokenWeight int `json:"token_weight,omitempty"`

	// DomainMismatchPenalty multiplies a skill's raw score when its domain
	// tags share nothing with the task's domain. Drives hard mismatches
	// toward zero regardless of lexical overlap.
	DomainMismatchPenalty float64 `json:"domain_mismatch_penalty,omitempty"`

	// ScanLayerBudget is the token-unit ceiling for the scanned (Domain
	// dynamic) layer content.
	ScanLayerBudget int `json:"scan_layer_budget,omitempty"`

	// GlobalBudget is the token-unit ceiling for a whole context stack.
	GlobalBudget int `json:"global_budget,omitempty"`

	// ArtifactBudget is the token-unit ceiling for a generated artifact.
	ArtifactBudget int `json:"artifact_budget,omitempty"`

	// ScanMaxDepth bounds directory traversal during project scanning.
	ScanMaxDepth int `json:"scan_max_depth,omitempty"`

	// SystemFacts are the fixed role/capability/constraint facts that form
	// the System layer. Declared once per configuration; never truncated.
	SystemFacts []string `json:"system_facts,omitempty"`

	// AllowedPaths is an allowlist of directories for export operations.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ScoreThreshold:        75,
		MaxSkills:             2,
		PhraseWeight:          3,
		TokenWeight:           1,
		DomainMismatchPenalty: 0.1,
		ScanLayerBudget:       500,
		GlobalBudget:          2000,
		ArtifactBudget:        1500,
		ScanMaxDepth:          4,
		SystemFacts: []string{
			"Role: senior software engineer executing a scoped implementation task.",
			"Capability: read project context, follow declared rules, produce reviewable changes.",
			"Constraint: never invent project conventions; cite rules when they apply.",
		},
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.strata.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.strata) and repo
// (.strata) directories. Repo config is found by walking upward from startDir
// to find the nearest .strata/config.json. Repo config takes precedence for
// scalar values; arrays are merged (deduplicated). Either or both configs may
// be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .strata/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".strata", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are replaced for
// SystemFacts (overlay redefines the whole layer) and merged for path and
// tool lists.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ScoreThreshold = overlayInt(base.ScoreThreshold, overlay.ScoreThreshold)
	result.MaxSkills = overlayInt(base.MaxSkills, overlay.MaxSkills)
	result.PhraseWeight = overlayInt(base.PhraseWeight, overlay.PhraseWeight)
	result.TokenWeight = overlayInt(base.TokenWeight, overlay.TokenWeight)
	result.ScanLayerBudget = overlayInt(base.ScanLayerBudget, overlay.ScanLayerBudget)
	result.GlobalBudget = overlayInt(base.GlobalBudget, overlay.GlobalBudget)
	result.ArtifactBudget = overlayInt(base.ArtifactBudget, overlay.ArtifactBudget)
	result.ScanMaxDepth = overlayInt(base.ScanMaxDepth, overlay.ScanMaxDepth)
	result.DBMaxOpenConns = overlayInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns)
	result.DBMaxIdleConns = overlayInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns)

	result.DomainMismatchPenalty = overlay.DomainMismatchPenalty
	if result.DomainMismatchPenalty == 0 {
		result.DomainMismatchPenalty = base.DomainMismatchPenalty
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// SystemFacts: overlay replaces entirely when set. The System layer is a
	// single declared unit; merging two fact sets would change its meaning.
	result.SystemFacts = base.SystemFacts
	if len(overlay.SystemFacts) > 0 {
		result.SystemFacts = overlay.SystemFacts
	}

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// overlayInt returns overlay if non-zero, else base.
func overlayInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
