package view

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"agentview/internal/message"
)

// stubEngine serves a fixed message sequence.
type stubEngine struct {
	msgs []*message.Message
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) ReadSessionMeta(path string) (message.SessionMeta, error) {
	return message.SessionMeta{ID: "sess-1", Path: path}, nil
}

func (s *stubEngine) Summarize(path string) (string, int, time.Time, error) {
	return "", len(s.msgs), time.Time{}, nil
}

func (s *stubEngine) Messages(path string, fn func(*message.Message) error) error {
	for _, msg := range s.msgs {
		if err := fn(msg); err != nil {
			return err
		}
	}
	return nil
}

func textMsg(role message.Role, text string) *message.Message {
	return &message.Message{
		Role:      role,
		Content:   []message.Block{message.TextBlock(text)},
		Timestamp: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func conversation() *stubEngine {
	bookkeeping := &message.Message{
		Role:     message.RoleSystem,
		ItemType: "token_usage",
		Usage:    &message.Usage{InputTokens: 10},
	}
	resultOnly := &message.Message{
		Role:       message.RoleAssistant,
		ResultOnly: true,
		Content: []message.Block{
			{Type: message.BlockToolResult, ToolResult: &message.ToolResult{ToolUseID: "c1", Content: "out"}},
		},
	}
	return &stubEngine{msgs: []*message.Message{
		textMsg(message.RoleUser, "question"),
		bookkeeping,
		resultOnly,
		textMsg(message.RoleThinking, "pondering"),
		textMsg(message.RoleAssistant, "answer"),
	}}
}

func TestRunTextHidesBookkeepingByDefault(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{
		Engine:       conversation(),
		Path:         "ignored.jsonl",
		Format:       "text",
		ForceNoColor: true,
		Out:          &buf,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "question") || !strings.Contains(out, "answer") {
		t.Fatalf("conversation content missing:\n%s", out)
	}
	if strings.Contains(out, "token_usage") || strings.Contains(out, "Output: out") {
		t.Fatalf("bookkeeping should be hidden:\n%s", out)
	}
	if !strings.Contains(out, "pondering") {
		t.Fatalf("thinking should be visible by default:\n%s", out)
	}
}

func TestRunAllShowsEverything(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{
		Engine:       conversation(),
		Path:         "ignored.jsonl",
		Format:       "text",
		All:          true,
		ForceNoColor: true,
		Out:          &buf,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Output: out") {
		t.Fatalf("result-only message missing with --all:\n%s", buf.String())
	}
}

func TestRunRoleFilter(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{
		Engine:       conversation(),
		Path:         "ignored.jsonl",
		Format:       "text",
		RoleArg:      "user",
		ForceNoColor: true,
		Out:          &buf,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "question") {
		t.Fatalf("user message missing:\n%s", out)
	}
	if strings.Contains(out, "answer") || strings.Contains(out, "pondering") {
		t.Fatalf("filtered roles leaked:\n%s", out)
	}
}

func TestRunUnknownRoleRejected(t *testing.T) {
	err := Run(Options{
		Engine:  conversation(),
		Path:    "ignored.jsonl",
		RoleArg: "robot",
		Out:     &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRunMaxKeepsMostRecent(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{
		Engine:       conversation(),
		Path:         "ignored.jsonl",
		Format:       "text",
		MaxMessages:  1,
		ForceNoColor: true,
		Out:          &buf,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "question") {
		t.Fatalf("older messages should be dropped:\n%s", out)
	}
	if !strings.Contains(out, "answer") {
		t.Fatalf("latest message missing:\n%s", out)
	}
}

func TestRunJSONL(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{
		Engine: conversation(),
		Path:   "ignored.jsonl",
		Format: "jsonl",
		Out:    &buf,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 visible messages, got %d", len(lines))
	}
}

func TestRunChatTranscript(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{
		Engine:       conversation(),
		Path:         "ignored.jsonl",
		Format:       "chat",
		Wrap:         60,
		ForceNoColor: true,
		Out:          &buf,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "╭") || !strings.Contains(out, "╰") {
		t.Fatalf("expected bubble borders:\n%s", out)
	}
	if !strings.Contains(out, "User") || !strings.Contains(out, "Assistant") {
		t.Fatalf("expected role headers:\n%s", out)
	}
}

func TestRunUnsupportedFormat(t *testing.T) {
	err := Run(Options{
		Engine: conversation(),
		Path:   "ignored.jsonl",
		Format: "pdf",
		Out:    &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWrapTextWideRunes(t *testing.T) {
	lines := wrapText("ありがとう", 4)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines for wide runes, got %v", lines)
	}
}
