package codex

import "strings"

// Canonical tool identifiers. Every source agent words its tools differently
// (shell vs terminal vs execute); the rendering layer wants exactly one name
// per logical tool, so function-call names pass through this table.
const (
	ToolShell     = "shell"
	ToolEdit      = "edit"
	ToolRead      = "read"
	ToolWrite     = "write"
	ToolSearch    = "search"
	ToolList      = "list"
	ToolWebSearch = "web_search"
	ToolPlan      = "plan"
)

var toolNameAliases = map[string]string{
	"shell":            ToolShell,
	"bash":             ToolShell,
	"terminal":         ToolShell,
	"exec":             ToolShell,
	"execute":          ToolShell,
	"exec_command":     ToolShell,
	"run_command":      ToolShell,
	"run_terminal_cmd": ToolShell,
	"local_shell":      ToolShell,

	"edit":               ToolEdit,
	"edit_file":          ToolEdit,
	"patch":              ToolEdit,
	"apply_patch":        ToolEdit,
	"applypatch":         ToolEdit,
	"str_replace":        ToolEdit,
	"str_replace_editor": ToolEdit,

	"read":      ToolRead,
	"read_file": ToolRead,
	"view":      ToolRead,
	"cat":       ToolRead,
	"open_file": ToolRead,

	"write":       ToolWrite,
	"write_file":  ToolWrite,
	"create":      ToolWrite,
	"create_file": ToolWrite,
	"save_file":   ToolWrite,

	"search":          ToolSearch,
	"grep":            ToolSearch,
	"rg":              ToolSearch,
	"file_search":     ToolSearch,
	"codebase_search": ToolSearch,

	"list":           ToolList,
	"ls":             ToolList,
	"list_dir":       ToolList,
	"list_files":     ToolList,
	"list_directory": ToolList,

	"web_search":     ToolWebSearch,
	"websearch":      ToolWebSearch,
	"search_web":     ToolWebSearch,
	"browser_search": ToolWebSearch,

	"plan":        ToolPlan,
	"update_plan": ToolPlan,
	"todo_write":  ToolPlan,
	"todowrite":   ToolPlan,
}

// CanonicalToolName translates a source tool name to its canonical
// identifier. Lookup is case-insensitive; unknown names pass through
// unchanged so new tools stay visible.
func CanonicalToolName(name string) string {
	if canonical, ok := toolNameAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return canonical
	}
	return name
}

// toolNameForChange maps a file-change kind to the canonical tool that best
// describes it: creations render as writes, deletions as shell removals,
// everything else as edits.
func toolNameForChange(kind string) string {
	switch strings.ToLower(kind) {
	case "add", "create":
		return ToolWrite
	case "delete", "remove":
		return ToolShell
	default:
		return ToolEdit
	}
}
