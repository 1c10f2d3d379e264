package codex

import (
	"errors"
	"time"

	"agentview/internal/message"
	"agentview/internal/tail"
)

// ErrSessionMetaNotFound is returned when a session file carries neither a
// session_meta entry nor a thread.started event.
var ErrSessionMetaNotFound = errors.New("session metadata not found")

var errStop = errors.New("stop iteration")

// Engine adapts Codex session files to the canonical message model. It is
// the file-based entry point; live streams feed a Converter directly.
type Engine struct {
	opts Options
}

// NewEngine creates an engine that converts with the given options.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Name returns the engine identifier used for selection.
func (e *Engine) Name() string { return "codex" }

// NewConverter returns a fresh per-session converter with the engine's
// options, for callers that feed lines themselves (e.g. live following).
func (e *Engine) NewConverter() *Converter {
	return NewConverter(e.opts)
}

// ReadSessionMeta extracts session metadata from the first session_meta or
// thread.started entry in the file. Undecodable lines are skipped; metadata
// may follow them.
func (e *Engine) ReadSessionMeta(path string) (message.SessionMeta, error) {
	var meta message.SessionMeta
	found := false

	err := tail.ReadLines(path, func(line []byte) error {
		event, err := ParseEvent(line)
		if err != nil {
			return nil
		}
		switch event.Type {
		case EventSessionMeta:
			startedAt := event.Timestamp
			if event.Meta.Timestamp != "" {
				if parsed, err := parseTimestamp(event.Meta.Timestamp); err == nil {
					startedAt = parsed
				}
			}
			meta = message.SessionMeta{
				ID:         event.Meta.ID,
				Path:       path,
				CWD:        event.Meta.CWD,
				Originator: event.Meta.Originator,
				CLIVersion: event.Meta.CLIVersion,
				StartedAt:  startedAt,
			}
			found = true
			return errStop
		case EventThreadStarted:
			meta = message.SessionMeta{
				ID:        event.ThreadID,
				Path:      path,
				StartedAt: event.Timestamp,
			}
			found = true
			return errStop
		}
		return nil
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
// message, after the de-duplication pass over the full sequence.
func (e *Engine) Messages(path string, fn func(*message.Message) error) error {
	converter := NewConverter(e.opts)

	var msgs []*message.Message
	err := tail.ReadLines(path, func(line []byte) error {
		if msg := converter.ProcessLine(line); msg != nil {
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, msg := range DedupeMessages(msgs) {
		if err := fn(msg); err != nil {
			return err
		}
	}
	return nil
}

// Summarize returns the first user request text, the number of conversation
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
			if summary == "" && msg.Role == message.RoleUser {
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
