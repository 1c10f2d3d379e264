package codex

import (
	"time"

	"agentview/internal/message"
)

// DedupeMessages removes redundant assistant texts from a converted message
// sequence. The same content can arrive over redundant channels (the
// canonical response_item path plus the fallback agent_message event, or a
// global plus a session-specific stream), and this check inherently needs
// the whole history, so it runs as a second pass rather than inside the
// per-event conversion.
//
// Two rules apply, in order:
//   - a fallback-tagged assistant text whose content was also produced by a
//     canonical-path message is dropped;
//   - two canonical assistant texts sharing a de-duplication key keep only
//     the first occurrence.
//
// Messages carrying tool or image blocks are never touched.
func DedupeMessages(msgs []*message.Message) []*message.Message {
	canonicalTexts := make(map[string]struct{})
	for _, msg := range msgs {
		if msg.Role == message.RoleAssistant && msg.Origin != message.OriginFallback && msg.IsTextOnly() {
			canonicalTexts[msg.Text()] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	out := make([]*message.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == message.RoleAssistant && msg.IsTextOnly() {
			text := msg.Text()
			if msg.Origin == message.OriginFallback {
				if _, dup := canonicalTexts[text]; dup {
					continue
				}
			} else {
				key := dedupeKey(msg, text)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
		}
		out = append(out, msg)
	}
	return out
}

// dedupeKey builds the identity of an assistant text: the item id and type
// when both are known, the timestamp otherwise, always combined with the
// exact text.
func dedupeKey(msg *message.Message, text string) string {
	base := msg.ItemID + "/" + msg.ItemType
	if msg.ItemID == "" || msg.ItemType == "" {
		base = msg.Timestamp.Format(time.RFC3339Nano)
	}
	return base + "|" + text
}
