// Package codex converts the Codex CLI event protocol into canonical
// conversation messages. The protocol mixes two generations of wire shapes:
// the streaming thread events (thread.started, turn.*, item.*) and the
// rollout JSONL entries (session_meta, response_item, event_msg,
// turn_context). The Converter in this package accepts both.
package codex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType represents the top-level "type" field of a Codex event.
type EventType string

const (
	EventThreadStarted EventType = "thread.started"
	EventTurnStarted   EventType = "turn.started"
	EventTurnCompleted EventType = "turn.completed"
	EventTurnFailed    EventType = "turn.failed"
	EventItemStarted   EventType = "item.started"
	EventItemUpdated   EventType = "item.updated"
	EventItemCompleted EventType = "item.completed"
	EventError         EventType = "error"
	EventSessionMeta   EventType = "session_meta"
	EventResponseItem  EventType = "response_item"
	EventEventMsg      EventType = "event_msg"
	EventTurnContext   EventType = "turn_context"
)

// ItemPhase describes an item's progress through its lifecycle.
type ItemPhase string

const (
	PhaseStarted   ItemPhase = "started"
	PhaseUpdated   ItemPhase = "updated"
	PhaseCompleted ItemPhase = "completed"
)

// ItemType captures the "item_type" (or legacy "type") values of thread items.
type ItemType string

const (
	ItemAgentMessage     ItemType = "agent_message"
	ItemReasoning        ItemType = "reasoning"
	ItemCommandExecution ItemType = "command_execution"
	ItemFileChange       ItemType = "file_change"
	ItemMCPToolCall      ItemType = "mcp_tool_call"
	ItemWebSearch        ItemType = "web_search"
	ItemTodoList         ItemType = "todo_list"
)

// ItemStatus values observed on thread items.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ResponseItemType captures the "payload.type" values in response_item entries.
type ResponseItemType string

const (
	ResponseItemTypeMessage              ResponseItemType = "message"
	ResponseItemTypeReasoning            ResponseItemType = "reasoning"
	ResponseItemTypeFunctionCall         ResponseItemType = "function_call"
	ResponseItemTypeFunctionCallOutput   ResponseItemType = "function_call_output"
	ResponseItemTypeCustomToolCall       ResponseItemType = "custom_tool_call"
	ResponseItemTypeCustomToolCallOutput ResponseItemType = "custom_tool_call_output"
	ResponseItemTypeGhostSnapshot        ResponseItemType = "ghost_snapshot"
)

// EventMsgType captures the "payload.type" values in event_msg entries.
type EventMsgType string

const (
	EventMsgTypeTokenCount       EventMsgType = "token_count"
	EventMsgTypeAgentReasoning   EventMsgType = "agent_reasoning"
	EventMsgTypeUserMessage      EventMsgType = "user_message"
	EventMsgTypeAgentMessage     EventMsgType = "agent_message"
	EventMsgTypeAssistantMessage EventMsgType = "assistant_message"
	EventMsgTypeTurnAborted      EventMsgType = "turn_aborted"
)

// TurnUsage is the token accounting attached to turn.completed events.
type TurnUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

// ThreadError is the error shape carried by turn.failed events.
type ThreadError struct {
	Message string `json:"message"`
}

// FileChange is one entry of a file_change item's "changes" list.
type FileChange struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "add", "update", "delete"
}

// TodoEntry is one entry of a todo_list item.
type TodoEntry struct {
	Text      string `json:"text"`
	Status    string `json:"status,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// ThreadItem is the unit of agent work reported by item.* events. The same
// item id arrives repeatedly as phases progress; later snapshots may carry
// only a subset of fields, so the Converter merges them against the retained
// snapshot before dispatching.
type ThreadItem struct {
	ID   string   `json:"id"`
	Type ItemType `json:"item_type"`

	// agent_message, reasoning
	Text string `json:"text,omitempty"`

	// command_execution
	Command          string `json:"command,omitempty"`
	AggregatedOutput string `json:"aggregated_output,omitempty"`
	ExitCode         *int   `json:"exit_code,omitempty"`

	// file_change: modern multi-file shape plus the legacy single-file one.
	Changes    []FileChange `json:"changes,omitempty"`
	FilePath   string       `json:"file_path,omitempty"`
	ChangeKind string       `json:"change_type,omitempty"`
	Content    string       `json:"content,omitempty"`
	Patch      string       `json:"patch,omitempty"`
	Diff       string       `json:"diff,omitempty"`

	// mcp_tool_call
	Server    string          `json:"server,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ThreadError    `json:"error,omitempty"`

	// web_search
	Query   string          `json:"query,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`

	// todo_list
	Todos []TodoEntry `json:"items,omitempty"`

	Status string `json:"status,omitempty"`
}

// UnmarshalJSON accepts both the "item_type" key and the legacy "type" key.
func (it *ThreadItem) UnmarshalJSON(data []byte) error {
	type alias ThreadItem
	var raw struct {
		alias
		LegacyType ItemType `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = ThreadItem(raw.alias)
	if it.Type == "" {
		it.Type = raw.LegacyType
	}
	return nil
}

// ContentPart is one element of a response_item message's content array.
type ContentPart struct {
	Type     string `json:"type"` // "input_text", "output_text", "text", "input_image"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// SummaryPart is one element of a response_item reasoning summary.
type SummaryPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ResponseItem is the payload of a response_item entry.
type ResponseItem struct {
	Type ResponseItemType `json:"type"`
	ID   string           `json:"id,omitempty"`

	// message
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`

	// function_call / custom_tool_call
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Input     string `json:"input,omitempty"`

	// function_call_output / custom_tool_call_output
	Output string `json:"output,omitempty"`

	// reasoning
	Summary []SummaryPart `json:"summary,omitempty"`
}

// TokenUsage mirrors the usage shape inside token_count event messages.
type TokenUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	ReasoningTokens   int `json:"reasoning_output_tokens"`
	TotalTokens       int `json:"total_tokens"`
}

// TokenCountInfo is the "info" object of a token_count event message.
type TokenCountInfo struct {
	TotalTokenUsage    TokenUsage `json:"total_token_usage"`
	LastTokenUsage     TokenUsage `json:"last_token_usage"`
	ModelContextWindow int        `json:"model_context_window"`
}

// EventMsg is the payload of an event_msg entry.
type EventMsg struct {
	Type    EventMsgType    `json:"type"`
	Message string          `json:"message,omitempty"`
	Text    string          `json:"text,omitempty"`
	Images  []string        `json:"images,omitempty"`
	Info    *TokenCountInfo `json:"info,omitempty"`
}

// SessionMetaPayload is the payload of a session_meta entry.
type SessionMetaPayload struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	CWD        string `json:"cwd"`
	Originator string `json:"originator"`
	CLIVersion string `json:"cli_version"`
}

// Event is one decoded entry of the Codex event stream. Exactly the fields
// relevant to Type are populated.
type Event struct {
	Type      EventType
	Timestamp time.Time

	ThreadID string              // thread.started
	Usage    *TurnUsage          // turn.completed
	Error    *ThreadError        // turn.failed, error
	Item     *ThreadItem         // item.started / item.updated / item.completed
	Meta     *SessionMetaPayload // session_meta
	Response *ResponseItem       // response_item
	Msg      *EventMsg           // event_msg
}

type rawEvent struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp,omitempty"`
	ThreadID  string          `json:"thread_id,omitempty"`
	Usage     *TurnUsage      `json:"usage,omitempty"`
	Error     *ThreadError    `json:"error,omitempty"`
	Message   string          `json:"message,omitempty"`
	Item      json.RawMessage `json:"item,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ParseEvent decodes a single raw event object.
func ParseEvent(raw []byte) (Event, error) {
	var rec rawEvent
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if rec.Type == "" {
		return Event{}, errors.New("event has no type")
	}

	event := Event{Type: EventType(rec.Type)}
	if rec.Timestamp != "" {
		ts, err := parseTimestamp(rec.Timestamp)
		if err != nil {
			return Event{}, err
		}
		event.Timestamp = ts
	}

	switch event.Type {
	case EventThreadStarted:
		event.ThreadID = rec.ThreadID
	case EventTurnStarted:
		// No payload.
	case EventTurnCompleted:
		event.Usage = rec.Usage
	case EventTurnFailed:
		event.Error = rec.Error
	case EventError:
		event.Error = &ThreadError{Message: rec.Message}
		if rec.Error != nil && rec.Error.Message != "" {
			event.Error = rec.Error
		}
	case EventItemStarted, EventItemUpdated, EventItemCompleted:
		if len(rec.Item) > 0 {
			var item ThreadItem
			if err := json.Unmarshal(rec.Item, &item); err != nil {
				return Event{}, fmt.Errorf("unmarshal item: %w", err)
			}
			event.Item = &item
		}
	case EventSessionMeta:
		var meta SessionMetaPayload
		if err := json.Unmarshal(rec.Payload, &meta); err != nil {
			return Event{}, fmt.Errorf("unmarshal session_meta payload: %w", err)
		}
		event.Meta = &meta
	case EventResponseItem:
		var payload ResponseItem
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return Event{}, fmt.Errorf("unmarshal response_item payload: %w", err)
		}
		event.Response = &payload
	case EventEventMsg:
		var payload EventMsg
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return Event{}, fmt.Errorf("unmarshal event_msg payload: %w", err)
		}
		event.Msg = &payload
	case EventTurnContext:
		// Carried for completeness; the converter ignores it.
	}

	return event, nil
}

// phaseOf maps an item event type to its lifecycle phase.
func phaseOf(t EventType) ItemPhase {
	switch t {
	case EventItemStarted:
		return PhaseStarted
	case EventItemUpdated:
		return PhaseUpdated
	default:
		return PhaseCompleted
	}
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
