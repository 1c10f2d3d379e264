package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"agentview/internal/message"
)

// WriteMessages writes canonical messages to w in the requested format.
// "plain" prints labeled text bodies; "json" and "jsonl" export the
// canonical records verbatim.
func WriteMessages(w io.Writer, msgs []*message.Message, format string) error {
	format = strings.ToLower(format)
	switch format {
	case "", "plain":
		for _, msg := range msgs {
			if _, err := fmt.Fprintln(w, RenderMessage(msg, 0)); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, msg := range msgs {
			if err := enc.Encode(msg); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// RenderMessageLines returns the formatted body lines for a message.
func RenderMessageLines(msg *message.Message, wrapWidth int) []string {
	body := renderBlocks(msg.Content, wrapWidth)
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// RenderMessage converts a message into a printable string with a
// timestamp and role label.
func RenderMessage(msg *message.Message, wrapWidth int) string {
	lines := RenderMessageLines(msg, wrapWidth)
	label := string(msg.Role)
	if msg.ItemType != "" && msg.Role == message.RoleSystem {
		label = msg.ItemType
	}
	return fmt.Sprintf("[%s][%s]\n%s", msg.Timestamp.Format(time.RFC3339), label, strings.Join(lines, "\n"))
}

// renderBlocks joins content blocks into a printable string with optional wrapping.
func renderBlocks(blocks []message.Block, wrapWidth int) string {
	if len(blocks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case message.BlockText:
			parts = append(parts, wrapBody(strings.TrimSpace(block.Text), wrapWidth))
		case message.BlockImage:
			parts = append(parts, renderImage(block.Image))
		case message.BlockToolUse:
			parts = append(parts, renderToolUse(block.ToolUse))
		case message.BlockToolResult:
			parts = append(parts, renderToolResult(block.ToolResult, wrapWidth))
		default:
			prefix := fmt.Sprintf("[%s] ", block.Type)
			parts = append(parts, prefix+wrapBody(strings.TrimSpace(block.Text), wrapWidth))
		}
	}
	return strings.Join(parts, "\n")
}

func renderImage(img *message.Image) string {
	if img == nil {
		return "[image]"
	}
	switch img.Encoding {
	case message.ImageURL:
		return fmt.Sprintf("[image %s]", img.Data)
	default:
		if img.MediaType != "" {
			return fmt.Sprintf("[image %s, %d bytes base64]", img.MediaType, len(img.Data))
		}
		return fmt.Sprintf("[image %d bytes base64]", len(img.Data))
	}
}

func renderToolUse(use *message.ToolUse) string {
	if use == nil {
		return ""
	}
	header := fmt.Sprintf("Tool: %s", use.Name)
	if len(use.Input) == 0 {
		return header
	}
	raw, err := json.Marshal(use.Input)
	if err != nil {
		return header
	}
	return fmt.Sprintf("%s\nArguments:\n%s", header, formatJSON(string(raw)))
}

func renderToolResult(result *message.ToolResult, wrapWidth int) string {
	if result == nil {
		return ""
	}
	label := "Output"
	if result.IsError {
		label = "Error"
	}
	formatted := formatJSON(result.Content)
	if formatted == result.Content {
		return fmt.Sprintf("%s: %s", label, wrapBody(strings.TrimSpace(result.Content), wrapWidth))
	}
	return fmt.Sprintf("%s:\n%s", label, formatted)
}

func wrapBody(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)

	return strings.Join(lines, "\n")
}

func formatJSON(raw string) string {
	if raw == "" {
		return raw
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err == nil {
		return buf.String()
	}
	return raw
}
