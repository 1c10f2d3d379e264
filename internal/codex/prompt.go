package codex

import (
	"regexp"
	"strings"
)

// Markers configures the heuristics that separate a user's actual request
// from boilerplate the CLI injects around it. The upstream agent is free to
// change its wrapper format, so these are configuration rather than protocol;
// DefaultMarkers tracks what Codex currently emits.
type Markers struct {
	// Boilerplate marks text blocks that consist of injected context rather
	// than user input.
	Boilerplate []string
	// Request marks the start of the user's real request inside an injected
	// wrapper. Everything after the first match is kept.
	Request []string
	// ImageTag matches inline image placeholder tags left in extracted text.
	ImageTag *regexp.Regexp
}

// DefaultMarkers returns the marker set matching current Codex boilerplate.
func DefaultMarkers() Markers {
	return Markers{
		Boilerplate: []string{
			"<environment_context>",
			"<user_instructions>",
			"<turn_aborted>",
			"<ENVIRONMENT_CONTEXT>",
		},
		Request: []string{
			"## My request for Codex:",
		},
		ImageTag: regexp.MustCompile(`\[image(?: [^\]]*)?\]`),
	}
}

// extractUserText separates the user's actual request from injected
// boilerplate. The returned bool reports whether any text should be kept:
// when a request marker is found the text after it survives; when only
// boilerplate markers are present the whole block is dropped. Sibling image
// blocks are never affected by this decision.
func (m Markers) extractUserText(text string) (string, bool) {
	for _, marker := range m.Request {
		if idx := strings.Index(text, marker); idx >= 0 {
			request := strings.TrimSpace(text[idx+len(marker):])
			return m.stripImageTags(request), true
		}
	}
	for _, marker := range m.Boilerplate {
		if strings.Contains(text, marker) {
			return "", false
		}
	}
	return m.stripImageTags(text), true
}

// stripImageTags removes inline image placeholder tags. Actual image blocks
// travel separately and are preserved.
func (m Markers) stripImageTags(text string) string {
	if m.ImageTag == nil {
		return text
	}
	stripped := m.ImageTag.ReplaceAllString(text, "")
	if stripped == text {
		return text
	}
	return strings.TrimSpace(stripped)
}
