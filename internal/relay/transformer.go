// Package relay implements the chat relay pipeline.
// This file rewrites conversation messages into the provider's content-block
// format and attaches the cache marker at the planned boundary.
package relay

import (
	"github.com/tidwall/sjson"
)

// cacheControlRaw is the cache marker attached to a content block. It signals
// the provider to cache everything up to and including that block.
const cacheControlRaw = `{"type":"ephemeral"}`

// BuildSystemBlocks wraps system instructions in a single cache-marked text
// block. The system prompt is maximally reusable across turns, so it is
// always marked. Returns nil when there are no system instructions.
func BuildSystemBlocks(systemText string) []byte {
	if systemText == "" {
		return nil
	}

	block, _ := sjson.Set(`{"type":"text"}`, "text", systemText)
	block, _ = sjson.SetRaw(block, "cache_control", cacheControlRaw)

	blocks, _ := sjson.SetRawBytes([]byte("[]"), "-1", []byte(block))
	return blocks
}

// BuildMessages transforms conversation messages into the provider's message
// array. Output order mirrors input order exactly. At most one message
// carries the cache marker: the one at boundaryIndex (-1 for none). When the
// image-bearing message coincides with the boundary, the marker attaches to
// its trailing text block, never the image block.
func BuildMessages(conversation []ChatMessage, boundaryIndex int, image *ImageAttachment, imageIndex int) []byte {
	out := []byte("[]")

	for i, msg := range conversation {
		entry, _ := sjson.Set("{}", "role", coerceRole(msg.Role))

		atBoundary := i == boundaryIndex
		withImage := image != nil && i == imageIndex

		switch {
		case withImage:
			entry, _ = sjson.SetRaw(entry, "content", imageContentBlocks(msg.Content, image, atBoundary))
		case atBoundary:
			entry, _ = sjson.SetRaw(entry, "content", textContentBlocks(msg.Content, true))
		default:
			entry, _ = sjson.Set(entry, "content", msg.Content)
		}

		out, _ = sjson.SetRawBytes(out, "-1", []byte(entry))
	}

	return out
}

// coerceRole maps a client role onto a provider role. The provider only
// accepts "user" and "assistant"; malformed roles become "user" rather than
// failing the whole request.
func coerceRole(role string) string {
	if role == "assistant" {
		return "assistant"
	}
	return "user"
}

func textContentBlocks(text string, cacheMarked bool) string {
	block, _ := sjson.Set(`{"type":"text"}`, "text", text)
	if cacheMarked {
		block, _ = sjson.SetRaw(block, "cache_control", cacheControlRaw)
	}

	blocks, _ := sjson.SetRaw("[]", "-1", block)
	return blocks
}

func imageContentBlocks(text string, image *ImageAttachment, cacheMarked bool) string {
	imageBlock, _ := sjson.Set(`{"type":"image","source":{"type":"base64"}}`, "source.media_type", image.MimeType)
	imageBlock, _ = sjson.Set(imageBlock, "source.data", image.Base64)

	textBlock, _ := sjson.Set(`{"type":"text"}`, "text", text)
	if cacheMarked {
		textBlock, _ = sjson.SetRaw(textBlock, "cache_control", cacheControlRaw)
	}

	blocks, _ := sjson.SetRaw("[]", "-1", imageBlock)
	blocks, _ = sjson.SetRaw(blocks, "-1", textBlock)
	return blocks
}
