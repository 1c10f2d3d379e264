package codex

import (
	"regexp"

	"agentview/internal/message"
)

var dataURIPattern = regexp.MustCompile(`^data:([^;,]+);base64,(.*)$`)

// normalizeImage converts an image reference into a canonical image block.
// Data URIs become inline base64 payloads with their media type preserved;
// anything else is treated as a URL.
func normalizeImage(url string) *message.Image {
	if m := dataURIPattern.FindStringSubmatch(url); m != nil {
		return &message.Image{
			Encoding:  message.ImageInlineBase64,
			MediaType: m[1],
			Data:      m[2],
		}
	}
	return &message.Image{
		Encoding: message.ImageURL,
		Data:     url,
	}
}
