// Package usage aggregates token accounting across a conversation.
package usage

import (
	"fmt"

	"agentview/internal/message"
)

// Report summarizes token consumption for a session.
type Report struct {
	Totals        message.Usage
	Turns         int // turns with usage attached
	ContextWindow int // model context window, 0 if unknown
	LastTurn      message.Usage
}

// Collect walks a message stream and accumulates usage from every
// bookkeeping message that carries it. Turn summaries ("token_usage")
// hold the running total at that point, so the latest snapshot wins.
// Raw counter passthroughs ("token_count") are per-turn figures and are
// summed instead.
func Collect(msgs []*message.Message) Report {
	var r Report
	for _, m := range msgs {
		if m.Usage == nil || m.Usage.IsZero() {
			continue
		}
		r.Turns++
		r.LastTurn = *m.Usage
		if m.ItemType == "token_count" {
			r.Totals.Add(*m.Usage)
		} else {
			r.Totals = *m.Usage
		}
		if m.ContextWindow > 0 {
			r.ContextWindow = m.ContextWindow
		}
	}
	return r
}

// FillRatio reports how much of the context window the session has
// consumed, or -1 when the window is unknown.
func (r Report) FillRatio() float64 {
	if r.ContextWindow <= 0 {
		return -1
	}
	return float64(r.Totals.Total()) / float64(r.ContextWindow)
}

// String renders a one-line human summary.
func (r Report) String() string {
	if r.Turns == 0 {
		return "no token usage recorded"
	}
	s := fmt.Sprintf("%d in / %d cached / %d out (%d total)",
		r.Totals.InputTokens, r.Totals.CachedInputTokens, r.Totals.OutputTokens, r.Totals.Total())
	if ratio := r.FillRatio(); ratio >= 0 {
		s += fmt.Sprintf(", %.0f%% of %d context window", ratio*100, r.ContextWindow)
	}
	return s
}
