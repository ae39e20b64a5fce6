package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Task identity is passed flat: task_file, raw task_text
// YAML, or title plus optional fields, in that precedence order.

var runToolDef = mcp.NewTool("pipeline_run",
	mcp.WithDescription("Run the full context pipeline for a task: select skills, load rules, scan the project, assemble the context stack, generate the briefing artifact, validate it, and persist the audit record."),
	mcp.WithString("task_file", mcp.Description("Path to a task YAML file; overrides the inline task fields")),
	mcp.WithString("task_text", mcp.Description("Raw task YAML text; used when task_file is absent")),
	mcp.WithString("title", mcp.Description("Task title (inline task)")),
	mcp.WithString("summary", mcp.Description("Task summary")),
	mcp.WithString("type", mcp.Description("Task type: feature, bugfix, refactor, docs, infra")),
	mcp.WithArray("domain_keywords", mcp.Description("Domain keywords of the task")),
	mcp.WithArray("acceptance_keywords", mcp.Description("Acceptance criteria keywords")),
	mcp.WithString("skills_dir", mcp.Description("Directory holding skill subdirectories")),
	mcp.WithString("rules_dir", mcp.Description("Directory holding rule markdown files")),
	mcp.WithString("root", mcp.Description("Project root to scan")),
	mcp.WithNumber("max_depth", mcp.Description("Scan depth bound; 0 uses the configured default")),
	mcp.WithArray("ignored", mcp.Description("Directory names to skip while scanning")),
	mcp.WithString("deliverable_path", mcp.Description("Path the deliverable should land at")),
)

var scoreToolDef = mcp.NewTool("skill_score",
	mcp.WithDescription("Score every skill in the catalog against a task and report the selection."),
	mcp.WithString("task_file", mcp.Description("Path to a task YAML file; overrides the inline task fields")),
	mcp.WithString("task_text", mcp.Description("Raw task YAML text; used when task_file is absent")),
	mcp.WithString("title", mcp.Description("Task title (inline task)")),
	mcp.WithString("summary", mcp.Description("Task summary")),
	mcp.WithString("type", mcp.Description("Task type: feature, bugfix, refactor, docs, infra")),
	mcp.WithArray("domain_keywords", mcp.Description("Domain keywords of the task")),
	mcp.WithArray("acceptance_keywords", mcp.Description("Acceptance criteria keywords")),
	mcp.WithString("skills_dir", mcp.Description("Directory holding skill subdirectories"), mcp.Required()),
)

var scanToolDef = mcp.NewTool("context_scan",
	mcp.WithDescription("Extract structural signals from a project tree into a budgeted context layer, ranked by task relevance."),
	mcp.WithString("task_file", mcp.Description("Path to a task YAML file; overrides the inline task fields")),
	mcp.WithString("title", mcp.Description("Task title (inline task)")),
	mcp.WithArray("domain_keywords", mcp.Description("Domain keywords of the task")),
	mcp.WithString("root", mcp.Description("Project root to scan"), mcp.Required()),
	mcp.WithNumber("max_depth", mcp.Description("Scan depth bound; 0 uses the configured default")),
	mcp.WithArray("ignored", mcp.Description("Directory names to skip while scanning")),
)

var validateToolDef = mcp.NewTool("artifact_validate",
	mcp.WithDescription("Validate an artifact against the rule corpus: citation coverage, verbatim excerpts, unresolved placeholders."),
	mcp.WithString("run_id", mcp.Description("Stored run ID or unique prefix; mutually exclusive with artifact_file")),
	mcp.WithString("artifact_file", mcp.Description("Path to an artifact JSON file")),
	mcp.WithString("rules_dir", mcp.Description("Directory holding rule markdown files"), mcp.Required()),
	mcp.WithString("task_file", mcp.Description("Task file for domain-scoped validation; omit to validate against the whole corpus")),
	mcp.WithString("title", mcp.Description("Inline task title for domain-scoped validation")),
	mcp.WithArray("domain_keywords", mcp.Description("Domain keywords of the task")),
)

var showToolDef = mcp.NewTool("run_show",
	mcp.WithDescription("Fetch one stored run with its stack, artifact, and compliance report."),
	mcp.WithString("id", mcp.Description("Run ID or unique prefix"), mcp.Required()),
)

var listToolDef = mcp.NewTool("run_list",
	mcp.WithDescription("List stored runs newest-first."),
	mcp.WithString("status", mcp.Description("Filter by status: ok or degraded")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return; 0 means all")),
)

var exportToolDef = mcp.NewTool("run_export",
	mcp.WithDescription("Export stored runs as JSONL, one run per line."),
	mcp.WithString("path", mcp.Description("Target file; defaults to the exports directory")),
	mcp.WithString("status", mcp.Description("Filter by status: ok or degraded")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of runs to export; 0 means all")),
)

var purgeToolDef = mcp.NewTool("run_purge",
	mcp.WithDescription("Delete stored runs by ID, by age, or entirely."),
	mcp.WithString("id", mcp.Description("Run ID or unique prefix to delete")),
	mcp.WithNumber("older_than_days", mcp.Description("Delete runs older than this many days")),
)
