package codex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"agentview/internal/message"
)

const defaultPreviewLimit = 2000

// Options configures a Converter.
type Options struct {
	// Logger receives parse failures (warn) and unknown-variant notices
	// (debug). Defaults to slog.Default().
	Logger *slog.Logger
	// ShowRawReasoning surfaces low-latency agent_reasoning events as
	// thinking messages while they stream; the aggregated reasoning
	// response item is then suppressed when it adds nothing new.
	ShowRawReasoning bool
	// PreviewLimit caps the diff/content preview attached to single-file
	// change results. Zero means the default.
	PreviewLimit int
	// Markers drives user-text boilerplate extraction. Zero value means
	// DefaultMarkers.
	Markers Markers
}

// Converter turns the Codex event stream into canonical messages, one event
// at a time. It owns all cross-event state: item snapshots for phase merging,
// tool results keyed by call id, cumulative token usage, and the reasoning
// segments already surfaced this turn. One Converter serves one session
// thread; it is not safe for concurrent use.
//
// Item snapshots and tool results are retained for the whole session. There
// is no eviction: a session's event volume is bounded by human conversation
// length, and Reset clears everything when the instance is reused.
type Converter struct {
	logger  *slog.Logger
	markers Markers

	showRawReasoning bool
	previewLimit     int

	threadID         string
	currentTurnUsage *message.Usage
	cumulativeUsage  message.Usage
	items            map[string]ThreadItem
	toolResults      map[string]message.ToolResult
	reasoningSeen    map[string]struct{}
}

// NewConverter creates a converter for a single session stream.
func NewConverter(opts Options) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	markers := opts.Markers
	if markers.Boilerplate == nil && markers.Request == nil && markers.ImageTag == nil {
		markers = DefaultMarkers()
	}
	previewLimit := opts.PreviewLimit
	if previewLimit <= 0 {
		previewLimit = defaultPreviewLimit
	}
	return &Converter{
		logger:           logger,
		markers:          markers,
		showRawReasoning: opts.ShowRawReasoning,
		previewLimit:     previewLimit,
		items:            make(map[string]ThreadItem),
		toolResults:      make(map[string]message.ToolResult),
		reasoningSeen:    make(map[string]struct{}),
	}
}

// Reset clears all converter state so the instance can serve a new thread.
func (c *Converter) Reset() {
	c.threadID = ""
	c.currentTurnUsage = nil
	c.cumulativeUsage = message.Usage{}
	c.items = make(map[string]ThreadItem)
	c.toolResults = make(map[string]message.ToolResult)
	c.reasoningSeen = make(map[string]struct{})
}

// ThreadID returns the session identifier recorded at session start.
func (c *Converter) ThreadID() string { return c.threadID }

// CumulativeUsage returns the running session-wide token totals.
func (c *Converter) CumulativeUsage() message.Usage { return c.cumulativeUsage }

// ToolResult resolves a tool call's outcome by call id without scanning the
// message log.
func (c *Converter) ToolResult(callID string) (message.ToolResult, bool) {
	result, ok := c.toolResults[callID]
	return result, ok
}

// ProcessLine decodes one raw JSONL line and processes it. Unparseable lines
// are logged and skipped; the converter stays usable for subsequent lines.
func (c *Converter) ProcessLine(line []byte) *message.Message {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	event, err := ParseEvent(trimmed)
	if err != nil {
		c.logger.Warn("skipping unparseable event line", "error", err)
		return nil
	}
	return c.Process(event)
}

// Process converts one event into zero or one canonical message, updating
// converter state as a side effect. Events must arrive in stream order.
func (c *Converter) Process(event Event) *message.Message {
	switch event.Type {
	case EventThreadStarted:
		return c.startSession(event.ThreadID, event.Timestamp)
	case EventSessionMeta:
		if event.Meta == nil {
			c.logger.Warn("session_meta event without payload")
			return nil
		}
		ts := event.Timestamp
		if ts.IsZero() && event.Meta.Timestamp != "" {
			if parsed, err := parseTimestamp(event.Meta.Timestamp); err == nil {
				ts = parsed
			}
		}
		return c.startSession(event.Meta.ID, ts)
	case EventTurnStarted:
		c.currentTurnUsage = nil
		return nil
	case EventTurnCompleted:
		return c.completeTurn(event)
	case EventTurnFailed:
		return c.failTurn(event, "Turn failed")
	case EventError:
		return c.failTurn(event, "Error")
	case EventItemStarted, EventItemUpdated, EventItemCompleted:
		return c.processItem(event)
	case EventResponseItem:
		return c.processResponseItem(event)
	case EventEventMsg:
		return c.processEventMsg(event)
	case EventTurnContext:
		return nil
	default:
		c.logger.Debug("ignoring unknown event type", "type", string(event.Type))
		return nil
	}
}

// startSession records the thread id and zeroes the cumulative usage, then
// emits a system init message so the caller can correlate the stream with
// its own session record.
func (c *Converter) startSession(id string, ts time.Time) *message.Message {
	c.threadID = id
	c.cumulativeUsage = message.Usage{}
	c.currentTurnUsage = nil
	return &message.Message{
		Role:      message.RoleSystem,
		Content:   []message.Block{message.TextBlock(fmt.Sprintf("Session started: %s", id))},
		Timestamp: ts,
		ThreadID:  id,
		ItemType:  "session_start",
	}
}

// completeTurn folds the turn's usage into the cumulative totals and emits a
// usage-only system message. The message carries the cumulative figures, not
// the per-turn delta: context-window displays show whole-session consumption.
func (c *Converter) completeTurn(event Event) *message.Message {
	var turn message.Usage
	if event.Usage != nil {
		turn = message.Usage{
			InputTokens:       event.Usage.InputTokens,
			CachedInputTokens: event.Usage.CachedInputTokens,
			OutputTokens:      event.Usage.OutputTokens,
		}
	}
	c.currentTurnUsage = &turn
	c.cumulativeUsage.Add(turn)

	total := c.cumulativeUsage
	return &message.Message{
		Role:      message.RoleSystem,
		Timestamp: event.Timestamp,
		Usage:     &total,
		ThreadID:  c.threadID,
		ItemType:  "token_usage",
	}
}

func (c *Converter) failTurn(event Event, label string) *message.Message {
	text := "unknown error"
	if event.Error != nil && strings.TrimSpace(event.Error.Message) != "" {
		text = strings.TrimSpace(event.Error.Message)
	}
	return &message.Message{
		Role:      message.RoleSystem,
		Content:   []message.Block{message.TextBlock(fmt.Sprintf("%s: %s", label, text))},
		Timestamp: event.Timestamp,
		ThreadID:  c.threadID,
		ItemType:  "error",
	}
}

// processItem merges the incoming snapshot with whatever was retained for the
// same item id (later non-empty fields win, absent fields inherit), stores
// the merged snapshot, and dispatches on the item type with the phase.
func (c *Converter) processItem(event Event) *message.Message {
	if event.Item == nil {
		c.logger.Warn("item event without item payload", "type", string(event.Type))
		return nil
	}
	item := *event.Item
	if item.ID != "" {
		if prev, ok := c.items[item.ID]; ok {
			item = mergeItems(prev, item)
		}
		c.items[item.ID] = item
	}
	phase := phaseOf(event.Type)

	switch item.Type {
	case ItemAgentMessage:
		return c.textMessage(message.RoleAssistant, item, event.Timestamp)
	case ItemReasoning:
		return c.textMessage(message.RoleThinking, item, event.Timestamp)
	case ItemCommandExecution:
		return c.convertCommand(item, phase, event.Timestamp)
	case ItemFileChange:
		return c.convertFileChange(item, phase, event.Timestamp)
	case ItemMCPToolCall:
		if phase != PhaseCompleted {
			return nil
		}
		return c.convertMCPCall(item, event.Timestamp)
	case ItemWebSearch:
		return c.convertWebSearch(item, phase, event.Timestamp)
	case ItemTodoList:
		return c.convertTodoList(item, event.Timestamp)
	default:
		c.logger.Debug("ignoring unknown item type", "item_type", string(item.Type), "id", item.ID)
		return nil
	}
}

func (c *Converter) textMessage(role message.Role, item ThreadItem, ts time.Time) *message.Message {
	if item.Text == "" {
		return nil
	}
	return &message.Message{
		Role:      role,
		Content:   []message.Block{message.TextBlock(item.Text)},
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    item.ID,
		ItemType:  string(item.Type),
	}
}

// convertCommand emits a streaming tool-use while the command runs and the
// paired tool-result once it completes.
func (c *Converter) convertCommand(item ThreadItem, phase ItemPhase, ts time.Time) *message.Message {
	use := &message.ToolUse{
		ID:    item.ID,
		Name:  ToolShell,
		Input: map[string]any{"command": item.Command},
	}
	blocks := []message.Block{{Type: message.BlockToolUse, ToolUse: use}}

	if phase == PhaseCompleted {
		isError := item.Status == StatusFailed
		if item.ExitCode != nil && *item.ExitCode != 0 {
			isError = true
		}
		result := message.ToolResult{
			ToolUseID: item.ID,
			Content:   item.AggregatedOutput,
			IsError:   isError,
		}
		c.toolResults[item.ID] = result
		blocks = append(blocks, message.Block{Type: message.BlockToolResult, ToolResult: &result})
	}

	return &message.Message{
		Role:      message.RoleAssistant,
		Content:   blocks,
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    item.ID,
		ItemType:  string(item.Type),
	}
}

// convertFileChange normalizes both the multi-file "changes" shape and the
// legacy single-file shape into one tool-use/tool-result pair per file.
// Heavier payloads (content, diff, patch) ride along only for single-file
// changes so multi-file messages stay bounded.
func (c *Converter) convertFileChange(item ThreadItem, phase ItemPhase, ts time.Time) *message.Message {
	changes := append([]FileChange(nil), item.Changes...)
	if len(changes) == 0 && item.FilePath != "" {
		changes = []FileChange{{Path: item.FilePath, Kind: item.ChangeKind}}
	}
	if len(changes) == 0 {
		c.logger.Warn("file_change item without file path", "id", item.ID)
		return nil
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	single := len(changes) == 1
	var blocks []message.Block
	for _, change := range changes {
		kind := change.Kind
		if kind == "" {
			kind = "update"
		}

		callID := item.ID
		if !single {
			callID = item.ID + ":" + change.Path
		}

		input := map[string]any{"file_path": change.Path, "change_type": kind}
		if single {
			if item.Content != "" {
				input["content"] = item.Content
			}
			if item.Diff != "" {
				input["diff"] = item.Diff
			}
			if item.Patch != "" {
				input["patch"] = item.Patch
			}
		}

		blocks = append(blocks, message.Block{Type: message.BlockToolUse, ToolUse: &message.ToolUse{
			ID:    callID,
			Name:  toolNameForChange(kind),
			Input: input,
		}})

		if phase != PhaseCompleted {
			continue
		}
		content := fmt.Sprintf("%s %s", kind, change.Path)
		if single {
			if preview := firstNonEmpty(item.Diff, item.Patch, item.Content); preview != "" {
				content = truncatePreview(preview, c.previewLimit)
			}
		}
		result := message.ToolResult{
			ToolUseID: callID,
			Content:   content,
			IsError:   item.Status == StatusFailed,
		}
		c.toolResults[callID] = result
		blocks = append(blocks, message.Block{Type: message.BlockToolResult, ToolResult: &result})
	}

	return &message.Message{
		Role:      message.RoleAssistant,
		Content:   blocks,
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    item.ID,
		ItemType:  string(item.Type),
	}
}

// convertMCPCall emits the completed MCP tool call as a tool-use/tool-result
// pair. Intermediate phases carry no state worth showing.
func (c *Converter) convertMCPCall(item ThreadItem, ts time.Time) *message.Message {
	name := item.Tool
	if item.Server != "" {
		name = item.Server + "." + item.Tool
	}

	use := &message.ToolUse{
		ID:    item.ID,
		Name:  name,
		Input: rawToInput(item.Arguments),
	}
	result := message.ToolResult{
		ToolUseID: item.ID,
		Content:   mcpResultText(item.Result),
		IsError:   item.Status == StatusFailed || item.Error != nil,
	}
	if item.Error != nil && result.Content == "" {
		result.Content = item.Error.Message
	}
	c.toolResults[item.ID] = result

	return &message.Message{
		Role: message.RoleAssistant,
		Content: []message.Block{
			{Type: message.BlockToolUse, ToolUse: use},
			{Type: message.BlockToolResult, ToolResult: &result},
		},
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    item.ID,
		ItemType:  string(item.Type),
	}
}

func (c *Converter) convertWebSearch(item ThreadItem, phase ItemPhase, ts time.Time) *message.Message {
	use := &message.ToolUse{
		ID:    item.ID,
		Name:  ToolWebSearch,
		Input: map[string]any{"query": item.Query},
	}
	blocks := []message.Block{{Type: message.BlockToolUse, ToolUse: use}}

	if phase == PhaseCompleted {
		result := message.ToolResult{
			ToolUseID: item.ID,
			Content:   searchResultsText(item.Results),
			IsError:   item.Status == StatusFailed,
		}
		c.toolResults[item.ID] = result
		blocks = append(blocks, message.Block{Type: message.BlockToolResult, ToolResult: &result})
	}

	return &message.Message{
		Role:      message.RoleAssistant,
		Content:   blocks,
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    item.ID,
		ItemType:  string(item.Type),
	}
}

func (c *Converter) convertTodoList(item ThreadItem, ts time.Time) *message.Message {
	if len(item.Todos) == 0 {
		return nil
	}
	lines := make([]string, 0, len(item.Todos))
	for _, todo := range item.Todos {
		glyph := "[ ]"
		switch {
		case todo.Completed || todo.Status == StatusCompleted:
			glyph = "[x]"
		case todo.Status == StatusInProgress:
			glyph = "[~]"
		}
		lines = append(lines, glyph+" "+todo.Text)
	}
	return &message.Message{
		Role:      message.RoleSystem,
		Content:   []message.Block{message.TextBlock(strings.Join(lines, "\n"))},
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    item.ID,
		ItemType:  string(item.Type),
	}
}

func (c *Converter) processResponseItem(event Event) *message.Message {
	payload := event.Response
	if payload == nil {
		c.logger.Warn("response_item event without payload")
		return nil
	}

	switch payload.Type {
	case ResponseItemTypeMessage:
		return c.convertChatMessage(payload, event.Timestamp)
	case ResponseItemTypeFunctionCall:
		return c.convertFunctionCall(payload, event.Timestamp, parseArguments(payload.Arguments))
	case ResponseItemTypeCustomToolCall:
		return c.convertFunctionCall(payload, event.Timestamp, map[string]any{"input": payload.Input})
	case ResponseItemTypeFunctionCallOutput, ResponseItemTypeCustomToolCallOutput:
		return c.convertToolOutput(payload, event.Timestamp)
	case ResponseItemTypeReasoning:
		return c.convertReasoningSummary(payload, event.Timestamp)
	case ResponseItemTypeGhostSnapshot:
		return nil
	default:
		c.logger.Debug("ignoring unknown response_item payload", "payload_type", string(payload.Type))
		return nil
	}
}

// convertChatMessage handles the canonical message path. User text runs
// through boilerplate extraction; images are normalized and always kept.
func (c *Converter) convertChatMessage(payload *ResponseItem, ts time.Time) *message.Message {
	role := message.RoleSystem
	switch payload.Role {
	case "user":
		role = message.RoleUser
	case "assistant":
		role = message.RoleAssistant
	case "system", "developer":
		role = message.RoleSystem
	default:
		c.logger.Debug("unknown response_item message role", "role", payload.Role)
	}

	var blocks []message.Block
	for _, part := range payload.Content {
		switch part.Type {
		case "input_image":
			if part.ImageURL != "" {
				blocks = append(blocks, message.Block{Type: message.BlockImage, Image: normalizeImage(part.ImageURL)})
			}
		default:
			text := part.Text
			if text == "" {
				continue
			}
			if role == message.RoleUser {
				extracted, keep := c.markers.extractUserText(text)
				if !keep || extracted == "" {
					continue
				}
				text = extracted
			}
			blocks = append(blocks, message.TextBlock(text))
		}
	}
	if len(blocks) == 0 {
		return nil
	}

	if role == message.RoleUser {
		// A new user message starts a turn; realtime reasoning segments
		// from the previous turn no longer suppress anything.
		c.reasoningSeen = make(map[string]struct{})
	}

	return &message.Message{
		Role:      role,
		Content:   blocks,
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    payload.ID,
		ItemType:  string(payload.Type),
	}
}

func (c *Converter) convertFunctionCall(payload *ResponseItem, ts time.Time, input map[string]any) *message.Message {
	use := &message.ToolUse{
		ID:    payload.CallID,
		Name:  CanonicalToolName(payload.Name),
		Input: input,
	}
	return &message.Message{
		Role:      message.RoleAssistant,
		Content:   []message.Block{{Type: message.BlockToolUse, ToolUse: use}},
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    payload.ID,
		ItemType:  string(payload.Type),
	}
}

// convertToolOutput records the result under its call id and returns it as a
// result-only message: the content belongs to the tool-use emitted earlier,
// so the grouping layer should not render it as an independent bubble.
func (c *Converter) convertToolOutput(payload *ResponseItem, ts time.Time) *message.Message {
	content, isError := parseToolOutput(payload.Output)
	result := message.ToolResult{
		ToolUseID: payload.CallID,
		Content:   content,
		IsError:   isError,
	}
	c.toolResults[payload.CallID] = result

	return &message.Message{
		Role:       message.RoleAssistant,
		Content:    []message.Block{{Type: message.BlockToolResult, ToolResult: &result}},
		Timestamp:  ts,
		ThreadID:   c.threadID,
		ItemID:     payload.ID,
		ItemType:   string(payload.Type),
		ResultOnly: true,
	}
}

// convertReasoningSummary emits the aggregated reasoning unless every
// segment already streamed through the realtime agent_reasoning channel this
// turn, in which case the aggregate would be a pure duplicate.
func (c *Converter) convertReasoningSummary(payload *ResponseItem, ts time.Time) *message.Message {
	var segments []string
	for _, part := range payload.Summary {
		if part.Text != "" {
			segments = append(segments, part.Text)
		}
	}
	if len(segments) == 0 {
		return nil
	}

	if c.showRawReasoning {
		allSeen := true
		for _, segment := range segments {
			if _, ok := c.reasoningSeen[segment]; !ok {
				allSeen = false
				break
			}
		}
		if allSeen {
			return nil
		}
	}

	blocks := make([]message.Block, 0, len(segments))
	for _, segment := range segments {
		blocks = append(blocks, message.TextBlock(segment))
	}
	return &message.Message{
		Role:      message.RoleThinking,
		Content:   blocks,
		Timestamp: ts,
		ThreadID:  c.threadID,
		ItemID:    payload.ID,
		ItemType:  string(payload.Type),
	}
}

func (c *Converter) processEventMsg(event Event) *message.Message {
	payload := event.Msg
	if payload == nil {
		c.logger.Warn("event_msg event without payload")
		return nil
	}

	switch payload.Type {
	case EventMsgTypeUserMessage:
		// Always dropped: it duplicates the response_item user message
		// verbatim and surfacing both shows duplicate turns.
		return nil
	case EventMsgTypeTokenCount:
		if payload.Info == nil {
			c.logger.Debug("token_count event without info")
			return nil
		}
		// This path reports the provider's own context-window snapshot and
		// passes through as-is, unlike turn.completed accumulation.
		usage := message.Usage{
			InputTokens:       payload.Info.LastTokenUsage.InputTokens,
			CachedInputTokens: payload.Info.LastTokenUsage.CachedInputTokens,
			OutputTokens:      payload.Info.LastTokenUsage.OutputTokens,
		}
		return &message.Message{
			Role:          message.RoleSystem,
			Timestamp:     event.Timestamp,
			Usage:         &usage,
			ContextWindow: payload.Info.ModelContextWindow,
			ThreadID:      c.threadID,
			ItemType:      string(payload.Type),
		}
	case EventMsgTypeAgentReasoning:
		if !c.showRawReasoning || payload.Text == "" {
			return nil
		}
		c.reasoningSeen[payload.Text] = struct{}{}
		return &message.Message{
			Role:      message.RoleThinking,
			Content:   []message.Block{message.TextBlock(payload.Text)},
			Timestamp: event.Timestamp,
			ThreadID:  c.threadID,
			ItemType:  string(payload.Type),
		}
	case EventMsgTypeAgentMessage, EventMsgTypeAssistantMessage:
		text := payload.Message
		if text == "" {
			text = payload.Text
		}
		if text == "" {
			return nil
		}
		return &message.Message{
			Role:      message.RoleAssistant,
			Content:   []message.Block{message.TextBlock(text)},
			Timestamp: event.Timestamp,
			ThreadID:  c.threadID,
			ItemType:  string(payload.Type),
			Origin:    message.OriginFallback,
		}
	case EventMsgTypeTurnAborted:
		return &message.Message{
			Role:      message.RoleSystem,
			Content:   []message.Block{message.TextBlock("Turn aborted")},
			Timestamp: event.Timestamp,
			ThreadID:  c.threadID,
			ItemType:  string(payload.Type),
		}
	default:
		c.logger.Debug("ignoring unknown event_msg payload", "payload_type", string(payload.Type))
		return nil
	}
}

// mergeItems overlays incoming onto prev: non-empty incoming fields win,
// absent fields inherit the retained snapshot.
func mergeItems(prev, incoming ThreadItem) ThreadItem {
	merged := prev
	merged.ID = incoming.ID
	if incoming.Type != "" {
		merged.Type = incoming.Type
	}
	if incoming.Text != "" {
		merged.Text = incoming.Text
	}
	if incoming.Command != "" {
		merged.Command = incoming.Command
	}
	if incoming.AggregatedOutput != "" {
		merged.AggregatedOutput = incoming.AggregatedOutput
	}
	if incoming.ExitCode != nil {
		merged.ExitCode = incoming.ExitCode
	}
	if len(incoming.Changes) > 0 {
		merged.Changes = incoming.Changes
	}
	if incoming.FilePath != "" {
		merged.FilePath = incoming.FilePath
	}
	if incoming.ChangeKind != "" {
		merged.ChangeKind = incoming.ChangeKind
	}
	if incoming.Content != "" {
		merged.Content = incoming.Content
	}
	if incoming.Patch != "" {
		merged.Patch = incoming.Patch
	}
	if incoming.Diff != "" {
		merged.Diff = incoming.Diff
	}
	if incoming.Server != "" {
		merged.Server = incoming.Server
	}
	if incoming.Tool != "" {
		merged.Tool = incoming.Tool
	}
	if len(incoming.Arguments) > 0 {
		merged.Arguments = incoming.Arguments
	}
	if len(incoming.Result) > 0 {
		merged.Result = incoming.Result
	}
	if incoming.Error != nil {
		merged.Error = incoming.Error
	}
	if incoming.Query != "" {
		merged.Query = incoming.Query
	}
	if len(incoming.Results) > 0 {
		merged.Results = incoming.Results
	}
	if len(incoming.Todos) > 0 {
		merged.Todos = incoming.Todos
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	return merged
}

// parseArguments decodes a function call's JSON argument string. Arguments
// that are not a JSON object survive under a "raw" key rather than being
// dropped.
func parseArguments(arguments string) map[string]any {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(trimmed), &input); err == nil {
		return input
	}
	return map[string]any{"raw": arguments}
}

// parseToolOutput interprets the output payload of a tool call. JSON-encoded
// arrays of text are unwrapped to plain text; objects carrying
// metadata.exit_code mark nonzero exits as errors.
func parseToolOutput(output string) (string, bool) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "", false
	}

	if strings.HasPrefix(trimmed, "[") {
		var parts []ContentPart
		if err := json.Unmarshal([]byte(trimmed), &parts); err == nil {
			var texts []string
			for _, part := range parts {
				if part.Text != "" {
					texts = append(texts, part.Text)
				}
			}
			if len(texts) > 0 {
				return strings.Join(texts, "\n"), false
			}
		}
		var plain []string
		if err := json.Unmarshal([]byte(trimmed), &plain); err == nil && len(plain) > 0 {
			return strings.Join(plain, "\n"), false
		}
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Output   string `json:"output"`
			Metadata *struct {
				ExitCode *int `json:"exit_code"`
			} `json:"metadata"`
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && (obj.Output != "" || obj.Metadata != nil) {
			isError := obj.Metadata != nil && obj.Metadata.ExitCode != nil && *obj.Metadata.ExitCode != 0
			content := obj.Output
			if content == "" {
				content = trimmed
			}
			return content, isError
		}
	}

	return output, false
}

// rawToInput decodes raw JSON arguments into a tool-use input map.
func rawToInput(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err == nil {
		return input
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return parseArguments(asString)
	}
	return map[string]any{"raw": string(raw)}
}

// mcpResultText extracts readable text from an MCP result, which usually
// nests content as {"content":[{"text":...}]}.
func mcpResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var nested struct {
		Content []ContentPart `json:"content"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested.Content) > 0 {
		var texts []string
		for _, part := range nested.Content {
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, "\n")
		}
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return string(raw)
}

// searchResultsText renders web search results as one line per hit.
func searchResultsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var hits []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(raw, &hits); err == nil && len(hits) > 0 {
		lines := make([]string, 0, len(hits))
		for _, hit := range hits {
			switch {
			case hit.Title != "" && hit.URL != "":
				lines = append(lines, hit.Title+" - "+hit.URL)
			case hit.Title != "":
				lines = append(lines, hit.Title)
			case hit.URL != "":
				lines = append(lines, hit.URL)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// truncatePreview bounds a diff/content preview so single-file change
// results cannot grow without limit.
func truncatePreview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "\n... (truncated)"
}
