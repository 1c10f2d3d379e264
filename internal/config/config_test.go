package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileIsZeroConfig(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if c.Engine != "" || c.PreviewLimit != 0 {
		t.Fatalf("expected zero config, got %+v", c)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
engine: claude
sessions_dir: /var/log/agents
show_raw_reasoning: true
preview_limit: 500
boilerplate:
  - "<ide_context>"
request_markers:
  - "### Request:"
image_tag: '\[img [0-9]+\]'
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Engine != "claude" || c.SessionsDir != "/var/log/agents" {
		t.Fatalf("unexpected config: %+v", c)
	}
	if !c.ShowRawReasoning || c.PreviewLimit != 500 {
		t.Fatalf("unexpected config: %+v", c)
	}

	m := c.Markers()
	if m.ImageTag == nil || !m.ImageTag.MatchString("[img 3]") {
		t.Fatal("custom image tag pattern not applied")
	}

	var found bool
	for _, marker := range m.Boilerplate {
		if marker == "<ide_context>" {
			found = true
		}
	}
	if !found {
		t.Fatal("configured boilerplate marker missing")
	}
	// Built-in markers survive alongside configured ones.
	found = false
	for _, marker := range m.Boilerplate {
		if marker == "<environment_context>" {
			found = true
		}
	}
	if !found {
		t.Fatal("default boilerplate marker dropped")
	}
}

func TestLoadRejectsBadEngine(t *testing.T) {
	path := writeConfig(t, "engine: gemini\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestLoadRejectsBadImageTag(t *testing.T) {
	path := writeConfig(t, "image_tag: '['\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid regexp")
	}
}

func TestLoadRejectsNegativePreviewLimit(t *testing.T) {
	path := writeConfig(t, "preview_limit: -1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative preview limit")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "engine: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
