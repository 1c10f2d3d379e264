package claude

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"agentview/internal/message"
	"agentview/internal/tail"
)

// ErrSessionMetaNotFound is returned when a session file has no valid
// entries to take metadata from.
var ErrSessionMetaNotFound = errors.New("no valid entries found in session file")

var errStop = errors.New("stop iteration")

// Engine adapts Claude Code session files to the canonical message model.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a Claude session engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Name returns the engine identifier used for selection.
func (e *Engine) Name() string { return "claude" }

// ReadSessionMeta extracts metadata from the first timestamped entry.
func (e *Engine) ReadSessionMeta(path string) (message.SessionMeta, error) {
	var meta message.SessionMeta
	found := false

	err := tail.ReadLines(path, func(line []byte) error {
		var entry rawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil
		}
		if entry.Timestamp == "" {
			return nil
		}
		startedAt, err := parseTimestamp(entry.Timestamp)
		if err != nil {
			return nil
		}
		meta = message.SessionMeta{
			ID:         entry.SessionID,
			Path:       path,
			CWD:        entry.CWD,
			CLIVersion: entry.Version,
			StartedAt:  startedAt,
		}
		found = true
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return message.SessionMeta{}, err
	}
	if !found {
		return message.SessionMeta{}, ErrSessionMetaNotFound
	}
	return meta, nil
}

// Messages converts the whole session file and calls fn for each canonical
// message.
func (e *Engine) Messages(path string, fn func(*message.Message) error) error {
	converter := NewConverter(e.logger)
	return tail.ReadLines(path, func(line []byte) error {
		if msg := converter.ProcessLine(line); msg != nil {
			return fn(msg)
		}
		return nil
	})
}

// Summarize returns the first user message text, the number of conversation
// messages, and the last timestamp seen in the session.
func (e *Engine) Summarize(path string) (string, int, time.Time, error) {
	var (
		summary string
		count   int
		last    time.Time
	)
	err := e.Messages(path, func(msg *message.Message) error {
		if !msg.Timestamp.IsZero() && msg.Timestamp.After(last) {
			last = msg.Timestamp
		}
		if msg.Role == message.RoleUser || msg.Role == message.RoleAssistant {
			count++
			if summary == "" && msg.Role == message.RoleUser && !msg.ResultOnly {
				summary = msg.Text()
			}
		}
		return nil
	})
	if err != nil {
		return "", 0, time.Time{}, err
	}
	return summary, count, last, nil
}
