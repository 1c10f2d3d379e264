package codex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventThreadStarted(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"thread.started","thread_id":"th_x","timestamp":"2026-02-01T10:00:00.123Z"}`))
	require.NoError(t, err)
	assert.Equal(t, EventThreadStarted, event.Type)
	assert.Equal(t, "th_x", event.ThreadID)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 123000000, time.UTC), event.Timestamp)
}

func TestParseEventLegacyItemTypeKey(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"hi"}}`))
	require.NoError(t, err)
	require.NotNil(t, event.Item)
	assert.Equal(t, ItemAgentMessage, event.Item.Type)
	assert.Equal(t, "hi", event.Item.Text)
}

func TestParseEventItemTypeKeyWins(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"item.started","item":{"id":"i2","item_type":"reasoning","type":"agent_message"}}`))
	require.NoError(t, err)
	require.NotNil(t, event.Item)
	assert.Equal(t, ItemReasoning, event.Item.Type)
}

func TestParseEventErrorShapes(t *testing.T) {
	flat, err := ParseEvent([]byte(`{"type":"error","message":"rate limited"}`))
	require.NoError(t, err)
	require.NotNil(t, flat.Error)
	assert.Equal(t, "rate limited", flat.Error.Message)

	nested, err := ParseEvent([]byte(`{"type":"error","error":{"message":"boom"}}`))
	require.NoError(t, err)
	require.NotNil(t, nested.Error)
	assert.Equal(t, "boom", nested.Error.Message)
}

func TestParseEventRejectsMissingType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"thread_id":"th"}`))
	assert.Error(t, err)
}

func TestParseEventRejectsBadJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{`))
	assert.Error(t, err)
}

func TestParseEventUnknownTypeTolerated(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"something.new"}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("something.new"), event.Type)
}

func TestPhaseOf(t *testing.T) {
	assert.Equal(t, PhaseStarted, phaseOf(EventItemStarted))
	assert.Equal(t, PhaseUpdated, phaseOf(EventItemUpdated))
	assert.Equal(t, PhaseCompleted, phaseOf(EventItemCompleted))
}
