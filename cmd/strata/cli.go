package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/strataforge/strata/internal/config"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/ops"
	"github.com/strataforge/strata/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, baseDir string) *cli.App {
	app := &cli.App{
		Name:    "strata",
		Usage:   "Deterministic task context pipeline",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(db, cfg),
			scoreCmd(cfg),
			scanCmd(cfg),
			assembleCmd(cfg),
			generateCmd(cfg),
			validateCmd(db, cfg),
			showCmd(db, cfg),
			listCmd(db, cfg),
			exportCmd(db, cfg, baseDir),
			purgeCmd(db, cfg),
			webCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// taskFlags are the flags shared by every command that takes a task.
func taskFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "task-file", Aliases: []string{"f"}, Usage: "Path to a task profile YAML file"},
		&cli.StringFlag{Name: "id", Usage: "Task identifier (generated when omitted)"},
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Task title"},
		&cli.StringFlag{Name: "summary", Usage: "Task summary"},
		&cli.StringFlag{Name: "type", Usage: "Task type: feature|bugfix|refactor|docs|infra"},
		&cli.StringFlag{Name: "domain", Usage: "Comma-separated domain keywords"},
		&cli.StringFlag{Name: "acceptance", Usage: "Comma-separated acceptance keywords"},
	}
}

// pipelineFlags are the flags shared by commands that run pipeline stages.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "skills", Aliases: []string{"s"}, Usage: "Skill catalog directory"},
		&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Usage: "Rule corpus directory"},
		&cli.StringFlag{Name: "root", Usage: "Project root to scan"},
		&cli.IntFlag{Name: "max-depth", Usage: "Maximum scan depth (0 uses the configured default)"},
		&cli.StringFlag{Name: "ignore", Usage: "Comma-separated directory names to skip while scanning"},
	}
}

// taskSpec builds a TaskSpec from the shared task flags.
func taskSpec(c *cli.Context) ops.TaskSpec {
	return ops.TaskSpec{
		File:               c.String("task-file"),
		ID:                 c.String("id"),
		Title:              c.String("title"),
		Summary:            c.String("summary"),
		Type:               c.String("type"),
		DomainKeywords:     parseCSV(c.String("domain")),
		AcceptanceKeywords: parseCSV(c.String("acceptance")),
	}
}

// taskSpecStdin builds a TaskSpec from the shared flags, falling back to
// task YAML piped via stdin when neither a file nor a title is given.
func taskSpecStdin(c *cli.Context) (ops.TaskSpec, error) {
	spec := taskSpec(c)
	if spec.File == "" && spec.Title == "" && stdinHasData() {
		text, err := readStdin()
		if err != nil {
			return spec, errors.NewInternal(err)
		}
		spec.Text = text
	}
	return spec, nil
}

// runCmd creates the run command.
func runCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute the full pipeline and store the run record",
		Flags: append(append(taskFlags(), pipelineFlags()...),
			&cli.StringFlag{Name: "deliverable", Usage: "Deliverable path for the artifact"},
			&cli.StringSliceFlag{Name: "set", Usage: "Extra placeholder value as key=value (repeatable)"},
		),
		Action: func(c *cli.Context) error {
			values, err := parseValues(c.StringSlice("set"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			spec, err := taskSpecStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Run(c.Context, db, cfg, ops.RunInput{
				Task:            spec,
				SkillsDir:       c.String("skills"),
				RulesDir:        c.String("rules"),
				Root:            c.String("root"),
				MaxDepth:        c.Int("max-depth"),
				Ignored:         parseCSV(c.String("ignore")),
				DeliverablePath: c.String("deliverable"),
				Values:          values,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// scoreCmd creates the score command.
func scoreCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Score the skill catalog against a task",
		Flags: append(taskFlags(),
			&cli.StringFlag{Name: "skills", Aliases: []string{"s"}, Required: true, Usage: "Skill catalog directory"},
		),
		Action: func(c *cli.Context) error {
			spec, err := taskSpecStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Score(cfg, ops.ScoreInput{
				Task:      spec,
				SkillsDir: c.String("skills"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// scanCmd creates the scan command.
func scanCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Extract a budgeted context layer from a project tree",
		Flags: append(taskFlags(),
			&cli.StringFlag{Name: "root", Required: true, Usage: "Project root to scan"},
			&cli.IntFlag{Name: "max-depth", Usage: "Maximum scan depth (0 uses the configured default)"},
			&cli.StringFlag{Name: "ignore", Usage: "Comma-separated directory names to skip"},
		),
		Action: func(c *cli.Context) error {
			spec, err := taskSpecStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Scan(cfg, ops.ScanInput{
				Task:     spec,
				Root:     c.String("root"),
				MaxDepth: c.Int("max-depth"),
				Ignored:  parseCSV(c.String("ignore")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// assembleCmd creates the assemble command.
func assembleCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "assemble",
		Usage: "Assemble the context stack without generating an artifact",
		Flags: append(taskFlags(), pipelineFlags()...),
		Action: func(c *cli.Context) error {
			spec, err := taskSpecStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Assemble(cfg, ops.AssembleInput{
				Task:      spec,
				SkillsDir: c.String("skills"),
				RulesDir:  c.String("rules"),
				Root:      c.String("root"),
				MaxDepth:  c.Int("max-depth"),
				Ignored:   parseCSV(c.String("ignore")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// generateCmd creates the generate command.
func generateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a briefing artifact without storing a run",
		Flags: append(append(taskFlags(), pipelineFlags()...),
			&cli.StringFlag{Name: "deliverable", Usage: "Deliverable path for the artifact"},
			&cli.StringSliceFlag{Name: "set", Usage: "Extra placeholder value as key=value (repeatable)"},
			&cli.BoolFlag{Name: "markdown", Usage: "Print the rendered markdown instead of JSON"},
		),
		Action: func(c *cli.Context) error {
			values, err := parseValues(c.StringSlice("set"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			spec, err := taskSpecStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Generate(cfg, ops.GenerateInput{RunInput: ops.RunInput{
				Task:            spec,
				SkillsDir:       c.String("skills"),
				RulesDir:        c.String("rules"),
				Root:            c.String("root"),
				MaxDepth:        c.Int("max-depth"),
				Ignored:         parseCSV(c.String("ignore")),
				DeliverablePath: c.String("deliverable"),
				Values:          values,
			}})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("markdown") {
				fmt.Println(output.Artifact.Markdown())
				return nil
			}
			return outputJSON(output)
		},
	}
}

// validateCmd creates the validate command.
func validateCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Re-validate a stored run or an artifact JSON file against the rule corpus",
		ArgsUsage: "[run-id]",
		Flags: append(taskFlags(),
			&cli.StringFlag{Name: "artifact", Aliases: []string{"a"}, Usage: "Artifact JSON file"},
			&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Required: true, Usage: "Rule corpus directory"},
		),
		Action: func(c *cli.Context) error {
			input := ops.ValidateInput{
				ArtifactFile: c.String("artifact"),
				RulesDir:     c.String("rules"),
				Task:         taskSpec(c),
			}
			if c.NArg() > 0 {
				input.RunID = c.Args().First()
			}

			output, err := ops.Validate(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a stored run by ID or unique prefix",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("run id is required"))
			}

			output, err := ops.Show(c.Context, db, cfg, ops.ShowInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored runs newest-first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "Filter by status: ok|degraded"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of runs"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, cfg, ops.ListInput{
				Status: c.String("status"),
				Limit:  c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config, baseDir string) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export stored runs as JSONL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Target file (defaults to the exports directory)"},
			&cli.StringFlag{Name: "status", Usage: "Filter by status: ok|degraded"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of runs"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				BaseDir: baseDir,
				Path:    c.String("output"),
				Status:  c.String("status"),
				Limit:   c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "purge",
		Usage:     "Delete stored runs by ID, by age, or entirely",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge runs older than N days (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = days
			}

			output, err := ops.Purge(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// webCmd creates the web command.
func webCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the run browser UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8787, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if sErr, ok := err.(*errors.StrataError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseCSV splits a comma-separated string into trimmed parts.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseValues splits repeated key=value flags into a map.
func parseValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid value %q, expected key=value", pair)
		}
		values[strings.TrimSpace(key)] = value
	}
	return values, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
