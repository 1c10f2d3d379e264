package codex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalToolName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bash", ToolShell},
		{"Bash", ToolShell},
		{"EXEC_COMMAND", ToolShell},
		{"apply_patch", ToolEdit},
		{"str_replace_editor", ToolEdit},
		{"read_file", ToolRead},
		{"create_file", ToolWrite},
		{"grep", ToolSearch},
		{"list_dir", ToolList},
		{"websearch", ToolWebSearch},
		{"update_plan", ToolPlan},
		{" shell ", ToolShell},
		{"launch_rocket", "launch_rocket"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalToolName(tt.in), "input %q", tt.in)
	}
}

func TestToolNameForChange(t *testing.T) {
	assert.Equal(t, ToolWrite, toolNameForChange("add"))
	assert.Equal(t, ToolWrite, toolNameForChange("Create"))
	assert.Equal(t, ToolShell, toolNameForChange("delete"))
	assert.Equal(t, ToolEdit, toolNameForChange("update"))
	assert.Equal(t, ToolEdit, toolNameForChange(""))
}
