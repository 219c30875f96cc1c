// Package relay implements the chat relay pipeline: request normalization,
// cache-window planning, provider message transformation, upstream invocation,
// usage accounting, and response extraction. All state is per-request.
package relay

// ChatMessage is a single conversation turn as received from the client.
// Ordering is significant; the slice is chronological.
type ChatMessage struct {
	// Role is "system", "user", or "assistant". Anything else is coerced to
	// "user" when the message is transformed for the provider.
	Role string `json:"role"`

	// Content is the plain-text message body.
	Content string `json:"content"`
}

// ImageAttachment is an optional inline image carried by a single user
// message. At most one attachment is supported per request.
type ImageAttachment struct {
	// MimeType is the image media type, e.g. "image/jpeg".
	MimeType string `json:"mimeType"`

	// Base64 is the base64-encoded image payload.
	Base64 string `json:"base64"`
}

// NormalizedRequest is the output of the request normalizer: system
// instructions separated from the conversation turns, plus the resolved
// image placement.
type NormalizedRequest struct {
	// SystemText is the content of the first system message, or empty.
	SystemText string

	// Conversation holds all non-system messages in their original order.
	Conversation []ChatMessage

	// ModelType is the client-facing model selector ("haiku" or "sonnet").
	ModelType string

	// Image is the optional attachment, nil when absent or dropped.
	Image *ImageAttachment

	// ImageIndex is the index into Conversation of the image-bearing
	// message, or -1 when no message carries the image.
	ImageIndex int
}
