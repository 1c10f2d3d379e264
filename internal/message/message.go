// Package message defines the engine-agnostic conversation records emitted
// by the event normalizers. Every downstream consumer (rendering, grouping,
// usage accounting, export) works on these types regardless of which agent
// produced the underlying stream.
package message

import (
	"strings"
	"time"
)

// Role identifies the speaker of a canonical message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleThinking  Role = "thinking"
	RoleSystem    Role = "system"
)

// Origin marks the channel a message arrived through. Fallback-tagged
// messages duplicate content that the canonical channel may also report and
// are candidates for removal in the de-duplication pass.
type Origin string

const (
	OriginCanonical Origin = ""
	OriginFallback  Origin = "fallback"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ImageEncoding identifies how image data is carried.
type ImageEncoding string

const (
	ImageInlineBase64 ImageEncoding = "inline_base64"
	ImageURL          ImageEncoding = "url"
)

// Image holds a normalized image reference or inline payload.
type Image struct {
	Encoding  ImageEncoding `json:"encoding"`
	MediaType string        `json:"media_type,omitempty"`
	Data      string        `json:"data"`
}

// ToolUse describes a tool invocation attributed to the assistant.
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// ToolResult carries the outcome of a tool invocation. ToolUseID references
// the paired ToolUse block's ID.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Block is one element of a message's content sequence. Exactly one of the
// payload fields matching Type is populated.
type Block struct {
	Type       BlockType   `json:"type"`
	Text       string      `json:"text,omitempty"`
	Image      *Image      `json:"image,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// Usage counts tokens consumed by one or more turns.
type Usage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens,omitempty"`
	OutputTokens      int `json:"output_tokens"`
}

// Add accumulates other into u component-wise.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.CachedInputTokens += other.CachedInputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns the combined token count.
func (u Usage) Total() int {
	return u.InputTokens + u.CachedInputTokens + u.OutputTokens
}

// IsZero reports whether all counters are zero.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.CachedInputTokens == 0 && u.OutputTokens == 0
}

// Message is the unified conversation record. Engine-specific metadata
// (ItemID, ItemType, ThreadID) is opaque to consumers but preserved so the
// grouping and de-duplication layers can correlate records.
type Message struct {
	Role      Role      `json:"role"`
	Content   []Block   `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	Usage         *Usage `json:"usage,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`

	ThreadID string `json:"thread_id,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	ItemType string `json:"item_type,omitempty"`

	Origin Origin `json:"origin,omitempty"`
	// ResultOnly marks a message that exists to deliver a tool result whose
	// paired tool use was emitted earlier; the grouping layer should not
	// render it as an independent bubble.
	ResultOnly bool `json:"result_only,omitempty"`
}

// Text joins all text blocks of the message with newlines.
func (m *Message) Text() string {
	var parts []string
	for _, block := range m.Content {
		if block.Type == BlockText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// HasToolBlocks reports whether the message carries tool_use or tool_result
// blocks.
func (m *Message) HasToolBlocks() bool {
	for _, block := range m.Content {
		if block.Type == BlockToolUse || block.Type == BlockToolResult {
			return true
		}
	}
	return false
}

// IsTextOnly reports whether the message consists purely of text blocks.
func (m *Message) IsTextOnly() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, block := range m.Content {
		if block.Type != BlockText {
			return false
		}
	}
	return true
}

// SessionMeta holds engine-agnostic session metadata extracted from a log.
type SessionMeta struct {
	ID         string
	Path       string
	CWD        string
	Originator string
	CLIVersion string
	StartedAt  time.Time
}
