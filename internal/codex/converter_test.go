package codex

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentview/internal/message"
)

func testConverter(t *testing.T, opts Options) *Converter {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewConverter(opts)
}

func processAll(t *testing.T, c *Converter, lines ...string) []*message.Message {
	t.Helper()
	var out []*message.Message
	for _, line := range lines {
		if msg := c.ProcessLine([]byte(line)); msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

func TestThreadStartedSetsThreadID(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"thread.started","thread_id":"th_1","timestamp":"2026-02-01T10:00:00Z"}`))
	require.NotNil(t, msg)
	assert.Equal(t, message.RoleSystem, msg.Role)
	assert.Equal(t, "session_start", msg.ItemType)
	assert.Equal(t, "th_1", msg.ThreadID)
	assert.Equal(t, "th_1", c.ThreadID())
	assert.Equal(t, "Session started: th_1", msg.Text())
}

func TestSessionMetaStartsSession(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"session_meta","payload":{"id":"sess-9","timestamp":"2026-02-01T10:00:00Z","cwd":"/tmp/p"}}`))
	require.NotNil(t, msg)
	assert.Equal(t, "sess-9", c.ThreadID())
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestItemPhaseMerge(t *testing.T) {
	c := testConverter(t, Options{})

	started := c.ProcessLine([]byte(`{"type":"item.started","timestamp":"2026-02-01T10:00:00Z","item":{"id":"item_1","item_type":"command_execution","command":"go test ./...","status":"in_progress"}}`))
	require.NotNil(t, started)
	require.Len(t, started.Content, 1)
	assert.Equal(t, message.BlockToolUse, started.Content[0].Type)
	assert.Equal(t, "go test ./...", started.Content[0].ToolUse.Input["command"])

	// The completion snapshot omits the command; it must inherit from the
	// retained item.
	completed := c.ProcessLine([]byte(`{"type":"item.completed","timestamp":"2026-02-01T10:00:05Z","item":{"id":"item_1","item_type":"command_execution","aggregated_output":"ok","exit_code":0,"status":"completed"}}`))
	require.NotNil(t, completed)
	require.Len(t, completed.Content, 2)
	assert.Equal(t, "go test ./...", completed.Content[0].ToolUse.Input["command"])
	result := completed.Content[1].ToolResult
	require.NotNil(t, result)
	assert.Equal(t, "item_1", result.ToolUseID)
	assert.Equal(t, "ok", result.Content)
	assert.False(t, result.IsError)

	stored, ok := c.ToolResult("item_1")
	require.True(t, ok)
	assert.Equal(t, "ok", stored.Content)
}

func TestFailedCommandMarksError(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"item.completed","item":{"id":"item_2","item_type":"command_execution","command":"false","aggregated_output":"boom","exit_code":1,"status":"completed"}}`))
	require.NotNil(t, msg)
	require.Len(t, msg.Content, 2)
	assert.True(t, msg.Content[1].ToolResult.IsError)
}

func TestToolResultOverwriteIsIdempotent(t *testing.T) {
	c := testConverter(t, Options{})
	processAll(t, c,
		`{"type":"item.completed","item":{"id":"item_3","item_type":"command_execution","command":"ls","aggregated_output":"first","exit_code":0,"status":"completed"}}`,
		`{"type":"item.completed","item":{"id":"item_3","item_type":"command_execution","command":"ls","aggregated_output":"second","exit_code":0,"status":"completed"}}`,
	)
	stored, ok := c.ToolResult("item_3")
	require.True(t, ok)
	assert.Equal(t, "second", stored.Content)
}

func TestCumulativeUsageAndReset(t *testing.T) {
	c := testConverter(t, Options{})
	msgs := processAll(t, c,
		`{"type":"thread.started","thread_id":"th_2"}`,
		`{"type":"turn.started"}`,
		`{"type":"turn.completed","usage":{"input_tokens":100,"cached_input_tokens":20,"output_tokens":30}}`,
		`{"type":"turn.started"}`,
		`{"type":"turn.completed","usage":{"input_tokens":50,"cached_input_tokens":0,"output_tokens":10}}`,
	)
	require.Len(t, msgs, 3)

	first := msgs[1]
	require.NotNil(t, first.Usage)
	assert.Equal(t, 150, first.Usage.Total())

	second := msgs[2]
	require.NotNil(t, second.Usage)
	assert.Equal(t, message.Usage{InputTokens: 150, CachedInputTokens: 20, OutputTokens: 40}, *second.Usage)
	assert.Equal(t, 210, c.CumulativeUsage().Total())

	c.Reset()
	assert.Zero(t, c.CumulativeUsage().Total())
	assert.Empty(t, c.ThreadID())
	_, ok := c.ToolResult("item_1")
	assert.False(t, ok)
}

func TestTurnFailedEmitsError(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"turn.failed","error":{"message":"model overloaded"}}`))
	require.NotNil(t, msg)
	assert.Equal(t, "error", msg.ItemType)
	assert.Equal(t, "Turn failed: model overloaded", msg.Text())
}

func TestUserMessageEventDropped(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"event_msg","payload":{"type":"user_message","message":"hello"}}`))
	assert.Nil(t, msg)
}

func TestUserTextBoilerplateExtraction(t *testing.T) {
	c := testConverter(t, Options{})

	wrapped := `{"type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"<user_instructions>always be terse</user_instructions>"}]}}`
	assert.Nil(t, c.ProcessLine([]byte(wrapped)))

	request := `{"type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"<environment_context>cwd=/tmp</environment_context>\n## My request for Codex:\nFix the bug"}]}}`
	msg := c.ProcessLine([]byte(request))
	require.NotNil(t, msg)
	assert.Equal(t, message.RoleUser, msg.Role)
	assert.Equal(t, "Fix the bug", msg.Text())
}

func TestUserImageNormalization(t *testing.T) {
	c := testConverter(t, Options{})
	line := `{"type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"see [image 1]"},{"type":"input_image","image_url":"data:image/png;base64,aGVsbG8="},{"type":"input_image","image_url":"https://example.com/x.png"}]}}`
	msg := c.ProcessLine([]byte(line))
	require.NotNil(t, msg)
	require.Len(t, msg.Content, 3)

	assert.Equal(t, "see", msg.Content[0].Text)

	inline := msg.Content[1].Image
	require.NotNil(t, inline)
	assert.Equal(t, message.ImageInlineBase64, inline.Encoding)
	assert.Equal(t, "image/png", inline.MediaType)
	assert.Equal(t, "aGVsbG8=", inline.Data)

	url := msg.Content[2].Image
	require.NotNil(t, url)
	assert.Equal(t, message.ImageURL, url.Encoding)
	assert.Equal(t, "https://example.com/x.png", url.Data)
}

func TestFunctionCallAndOutput(t *testing.T) {
	c := testConverter(t, Options{})

	call := c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"function_call","name":"Bash","call_id":"call_1","arguments":"{\"command\":\"ls\"}"}}`))
	require.NotNil(t, call)
	require.Len(t, call.Content, 1)
	use := call.Content[0].ToolUse
	require.NotNil(t, use)
	assert.Equal(t, ToolShell, use.Name)
	assert.Equal(t, "call_1", use.ID)
	assert.Equal(t, "ls", use.Input["command"])

	output := c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"function_call_output","call_id":"call_1","output":"{\"output\":\"bin\\nsrc\",\"metadata\":{\"exit_code\":0}}"}}`))
	require.NotNil(t, output)
	assert.True(t, output.ResultOnly)
	result := output.Content[0].ToolResult
	require.NotNil(t, result)
	assert.Equal(t, "bin\nsrc", result.Content)
	assert.False(t, result.IsError)

	stored, ok := c.ToolResult("call_1")
	require.True(t, ok)
	assert.Equal(t, "bin\nsrc", stored.Content)
}

func TestToolOutputExitCodeMarksError(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"function_call_output","call_id":"call_2","output":"{\"output\":\"no such file\",\"metadata\":{\"exit_code\":2}}"}}`))
	require.NotNil(t, msg)
	assert.True(t, msg.Content[0].ToolResult.IsError)
}

func TestToolOutputTextArrayUnwrapped(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"custom_tool_call_output","call_id":"call_3","output":"[{\"type\":\"text\",\"text\":\"line one\"},{\"type\":\"text\",\"text\":\"line two\"}]"}}`))
	require.NotNil(t, msg)
	assert.Equal(t, "line one\nline two", msg.Content[0].ToolResult.Content)
}

func TestFileChangeSingleCarriesDiffPreview(t *testing.T) {
	c := testConverter(t, Options{PreviewLimit: 10})
	long := strings.Repeat("d", 40)
	msg := c.ProcessLine([]byte(`{"type":"item.completed","item":{"id":"fc_1","item_type":"file_change","changes":[{"path":"main.go","kind":"update"}],"diff":"` + long + `","status":"completed"}}`))
	require.NotNil(t, msg)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, ToolEdit, msg.Content[0].ToolUse.Name)
	assert.Equal(t, long, msg.Content[0].ToolUse.Input["diff"])
	assert.Equal(t, strings.Repeat("d", 10)+"\n... (truncated)", msg.Content[1].ToolResult.Content)
}

func TestFileChangeMultiEmitsPairPerFile(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"item.completed","item":{"id":"fc_2","item_type":"file_change","changes":[{"path":"b.go","kind":"update"},{"path":"a.go","kind":"add"}],"status":"completed"}}`))
	require.NotNil(t, msg)
	require.Len(t, msg.Content, 4)

	// Sorted by path; creation renders as a write.
	assert.Equal(t, "fc_2:a.go", msg.Content[0].ToolUse.ID)
	assert.Equal(t, ToolWrite, msg.Content[0].ToolUse.Name)
	assert.Equal(t, "add a.go", msg.Content[1].ToolResult.Content)
	assert.Equal(t, "fc_2:b.go", msg.Content[2].ToolUse.ID)
	assert.Equal(t, ToolEdit, msg.Content[2].ToolUse.Name)
}

func TestMCPToolCall(t *testing.T) {
	c := testConverter(t, Options{})

	inProgress := c.ProcessLine([]byte(`{"type":"item.started","item":{"id":"mcp_1","item_type":"mcp_tool_call","server":"github","tool":"get_issue","status":"in_progress"}}`))
	assert.Nil(t, inProgress)

	msg := c.ProcessLine([]byte(`{"type":"item.completed","item":{"id":"mcp_1","item_type":"mcp_tool_call","arguments":{"number":7},"result":{"content":[{"type":"text","text":"issue body"}]},"status":"completed"}}`))
	require.NotNil(t, msg)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "github.get_issue", msg.Content[0].ToolUse.Name)
	assert.Equal(t, float64(7), msg.Content[0].ToolUse.Input["number"])
	assert.Equal(t, "issue body", msg.Content[1].ToolResult.Content)
}

func TestWebSearch(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"item.completed","item":{"id":"ws_1","item_type":"web_search","query":"go slog levels","results":[{"title":"slog docs","url":"https://pkg.go.dev/log/slog"}],"status":"completed"}}`))
	require.NotNil(t, msg)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, ToolWebSearch, msg.Content[0].ToolUse.Name)
	assert.Equal(t, "slog docs - https://pkg.go.dev/log/slog", msg.Content[1].ToolResult.Content)
}

func TestTodoListGlyphs(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"item.updated","item":{"id":"todo_1","item_type":"todo_list","items":[{"text":"write tests","status":"completed"},{"text":"fix lint","status":"in_progress"},{"text":"release"}]}}`))
	require.NotNil(t, msg)
	assert.Equal(t, message.RoleSystem, msg.Role)
	assert.Equal(t, "[x] write tests\n[~] fix lint\n[ ] release", msg.Text())
}

func TestReasoningSuppressedWhenStreamed(t *testing.T) {
	c := testConverter(t, Options{ShowRawReasoning: true})

	streamed := c.ProcessLine([]byte(`{"type":"event_msg","payload":{"type":"agent_reasoning","text":"thinking about tests"}}`))
	require.NotNil(t, streamed)
	assert.Equal(t, message.RoleThinking, streamed.Role)

	aggregate := c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"reasoning","summary":[{"type":"summary_text","text":"thinking about tests"}]}}`))
	assert.Nil(t, aggregate)

	fresh := c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"reasoning","summary":[{"type":"summary_text","text":"something new"}]}}`))
	require.NotNil(t, fresh)
	assert.Equal(t, "something new", fresh.Text())
}

func TestReasoningHiddenByDefault(t *testing.T) {
	c := testConverter(t, Options{})
	assert.Nil(t, c.ProcessLine([]byte(`{"type":"event_msg","payload":{"type":"agent_reasoning","text":"hidden"}}`)))

	aggregate := c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"reasoning","summary":[{"type":"summary_text","text":"kept"}]}}`))
	require.NotNil(t, aggregate)
	assert.Equal(t, message.RoleThinking, aggregate.Role)
}

func TestTokenCountPassthrough(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":900,"output_tokens":100},"last_token_usage":{"input_tokens":200,"cached_input_tokens":50,"output_tokens":25},"model_context_window":272000}}}`))
	require.NotNil(t, msg)
	require.NotNil(t, msg.Usage)
	assert.Equal(t, message.Usage{InputTokens: 200, CachedInputTokens: 50, OutputTokens: 25}, *msg.Usage)
	assert.Equal(t, 272000, msg.ContextWindow)
	assert.Equal(t, "token_count", msg.ItemType)
}

func TestAgentMessageFallbackOrigin(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"event_msg","payload":{"type":"agent_message","message":"done"}}`))
	require.NotNil(t, msg)
	assert.Equal(t, message.OriginFallback, msg.Origin)
	assert.Equal(t, "done", msg.Text())
}

func TestMalformedLineRecovery(t *testing.T) {
	c := testConverter(t, Options{})
	msgs := processAll(t, c,
		`{"type":"thread.started","thread_id":"th_3"}`,
		`{not json`,
		``,
		`{"type":"item.completed","item":{"id":"am_1","item_type":"agent_message","text":"still here"}}`,
	)
	require.Len(t, msgs, 2)
	assert.Equal(t, "still here", msgs[1].Text())
	assert.Equal(t, "th_3", msgs[1].ThreadID)
}

func TestGhostSnapshotIgnored(t *testing.T) {
	c := testConverter(t, Options{})
	assert.Nil(t, c.ProcessLine([]byte(`{"type":"response_item","payload":{"type":"ghost_snapshot","id":"gs_1"}}`)))
}

func TestTurnAborted(t *testing.T) {
	c := testConverter(t, Options{})
	msg := c.ProcessLine([]byte(`{"type":"event_msg","payload":{"type":"turn_aborted"}}`))
	require.NotNil(t, msg)
	assert.Equal(t, "Turn aborted", msg.Text())
}
