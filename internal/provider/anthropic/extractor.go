// Package anthropic implements the upstream invoker and response extractor
// for the Anthropic Messages API. This file normalizes the provider's
// multi-block response into a single plain-text reply.
package anthropic

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// FallbackReply is returned to the client whenever a real reply cannot be
// extracted. Parse failures are a degraded success, never an HTTP error.
const FallbackReply = "Sorry, I had trouble processing that. What else is on your mind?"

// ExtractText concatenates the text blocks of a provider response with single
// spaces. Any unexpected shape yields FallbackReply; this function never
// fails, because the caller must always have a displayable reply.
func (c *Client) ExtractText(raw []byte) string {
	return ExtractText(raw)
}

// ExtractText is the package-level extractor used by Client.ExtractText.
func ExtractText(raw []byte) string {
	content := gjson.GetBytes(raw, "content")
	if !content.IsArray() {
		log.Warn("unexpected provider response shape; returning fallback reply")
		return FallbackReply
	}

	var parts []string
	for _, block := range content.Array() {
		if block.Get("type").String() != "text" {
			continue
		}
		if text := block.Get("text").String(); text != "" {
			parts = append(parts, text)
		}
	}

	reply := strings.TrimSpace(strings.Join(parts, " "))
	if reply == "" {
		log.Warn("provider response contained no text blocks; returning fallback reply")
		return FallbackReply
	}
	return reply
}
