// Package claude converts Claude Code session logs into canonical
// conversation messages. Unlike the phased Codex protocol, Claude entries
// are self-contained JSONL records, so conversion is stateless line by line.
package claude

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agentview/internal/message"
)

// EntryType represents the top-level "type" field values in Claude Code
// JSONL logs.
type EntryType string

const (
	EntryTypeUser      EntryType = "user"
	EntryTypeAssistant EntryType = "assistant"
	EntryTypeSummary   EntryType = "summary"
)

type rawEntry struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	SessionID string          `json:"sessionId"`
	CWD       string          `json:"cwd"`
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
	Summary   string          `json:"summary"`
}

type messagePayload struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *struct {
		InputTokens          int `json:"input_tokens"`
		CacheReadInputTokens int `json:"cache_read_input_tokens"`
		OutputTokens         int `json:"output_tokens"`
	} `json:"usage"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
	Source    *struct {
		Type      string `json:"type"`
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
		URL       string `json:"url"`
	} `json:"source"`
}

// Converter turns Claude Code JSONL lines into canonical messages. It keeps
// no cross-line state beyond the session id seen first.
type Converter struct {
	logger    *slog.Logger
	sessionID string
}

// NewConverter creates a line converter.
func NewConverter(logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{logger: logger}
}

// ProcessLine decodes one JSONL line into zero or one canonical message.
// Undecodable lines are logged and skipped.
func (c *Converter) ProcessLine(line []byte) *message.Message {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	var entry rawEntry
	if err := json.Unmarshal([]byte(trimmed), &entry); err != nil {
		c.logger.Warn("skipping unparseable session line", "error", err)
		return nil
	}
	if entry.SessionID != "" && c.sessionID == "" {
		c.sessionID = entry.SessionID
	}

	switch EntryType(entry.Type) {
	case EntryTypeUser, EntryTypeAssistant:
		msg, err := convertEntry(entry)
		if err != nil {
			c.logger.Warn("skipping malformed entry", "error", err)
			return nil
		}
		if msg != nil {
			msg.ThreadID = c.sessionID
		}
		return msg
	case EntryTypeSummary:
		// Index records for session browsing, not conversation content.
		return nil
	default:
		c.logger.Debug("ignoring unknown entry type", "type", entry.Type)
		return nil
	}
}

func convertEntry(entry rawEntry) (*message.Message, error) {
	if len(entry.Message) == 0 {
		return nil, nil
	}
	var payload messagePayload
	if err := json.Unmarshal(entry.Message, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}

	var ts time.Time
	if entry.Timestamp != "" {
		parsed, err := parseTimestamp(entry.Timestamp)
		if err != nil {
			return nil, err
		}
		ts = parsed
	}

	blocks, thinkingOnly, resultOnly := convertContent(payload.Content)
	if len(blocks) == 0 {
		return nil, nil
	}

	role := message.RoleUser
	if payload.Role == "assistant" || EntryType(entry.Type) == EntryTypeAssistant {
		role = message.RoleAssistant
	}
	switch {
	case thinkingOnly:
		role = message.RoleThinking
	case resultOnly:
		// Claude reports tool results inside a user-role wrapper; the
		// canonical model attributes them to the assistant's tool use.
		role = message.RoleAssistant
	}

	msg := &message.Message{
		Role:       role,
		Content:    blocks,
		Timestamp:  ts,
		ItemID:     payload.ID,
		ItemType:   entry.Type,
		ResultOnly: resultOnly,
	}
	if payload.Usage != nil {
		msg.Usage = &message.Usage{
			InputTokens:       payload.Usage.InputTokens,
			CachedInputTokens: payload.Usage.CacheReadInputTokens,
			OutputTokens:      payload.Usage.OutputTokens,
		}
	}
	return msg, nil
}

// convertContent maps Claude content blocks to canonical blocks. The flags
// report whether the entry consists purely of thinking or of tool results.
func convertContent(raw json.RawMessage) (blocks []message.Block, thinkingOnly, resultOnly bool) {
	if len(raw) == 0 {
		return nil, false, false
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, false, false
		}
		return []message.Block{message.TextBlock(asString)}, false, false
	}

	var parts []contentBlock
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, false, false
	}

	thinkingOnly = len(parts) > 0
	resultOnly = len(parts) > 0
	for _, part := range parts {
		switch part.Type {
		case "text":
			thinkingOnly, resultOnly = false, false
			if part.Text != "" {
				blocks = append(blocks, message.TextBlock(part.Text))
			}
		case "thinking":
			resultOnly = false
			if part.Thinking != "" {
				blocks = append(blocks, message.TextBlock(part.Thinking))
			}
		case "image":
			thinkingOnly, resultOnly = false, false
			if img := convertImage(part); img != nil {
				blocks = append(blocks, message.Block{Type: message.BlockImage, Image: img})
			}
		case "tool_use":
			thinkingOnly, resultOnly = false, false
			var input map[string]any
			if len(part.Input) > 0 {
				_ = json.Unmarshal(part.Input, &input)
			}
			blocks = append(blocks, message.Block{Type: message.BlockToolUse, ToolUse: &message.ToolUse{
				ID:    part.ID,
				Name:  part.Name,
				Input: input,
			}})
		case "tool_result":
			thinkingOnly = false
			blocks = append(blocks, message.Block{Type: message.BlockToolResult, ToolResult: &message.ToolResult{
				ToolUseID: part.ToolUseID,
				Content:   resultText(part.Content),
				IsError:   part.IsError,
			}})
		default:
			thinkingOnly, resultOnly = false, false
		}
	}
	return blocks, thinkingOnly, resultOnly
}

func convertImage(part contentBlock) *message.Image {
	if part.Source == nil {
		return nil
	}
	if part.Source.Type == "base64" {
		return &message.Image{
			Encoding:  message.ImageInlineBase64,
			MediaType: part.Source.MediaType,
			Data:      part.Source.Data,
		}
	}
	if part.Source.URL != "" {
		return &message.Image{Encoding: message.ImageURL, Data: part.Source.URL}
	}
	return nil
}

// resultText flattens a tool_result content payload, which may be a plain
// string or a nested block array.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var nested []contentBlock
	if err := json.Unmarshal(raw, &nested); err == nil {
		var parts []string
		for _, block := range nested {
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
