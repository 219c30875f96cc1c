// Package relay implements the chat relay pipeline.
// This file validates the inbound request body and separates system
// instructions from conversation turns.
package relay

import (
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	relayerrors "github.com/sparkmatch/chatrelay/internal/errors"
)

// Normalize validates the raw request body and splits it into system text
// and conversation messages. It returns InvalidRequest when messages is
// missing or not an array; no upstream call should be made in that case.
func Normalize(body []byte) (*NormalizedRequest, error) {
	messages := gjson.GetBytes(body, "messages")
	if !messages.Exists() || !messages.IsArray() {
		return nil, relayerrors.NewInvalidRequest("messages must be an array")
	}

	req := &NormalizedRequest{
		ModelType:  gjson.GetBytes(body, "modelType").String(),
		ImageIndex: -1,
	}

	var image *ImageAttachment
	if imageData := gjson.GetBytes(body, "imageData"); imageData.IsObject() {
		image = &ImageAttachment{
			MimeType: imageData.Get("mimeType").String(),
			Base64:   imageData.Get("base64").String(),
		}
	}

	for _, entry := range messages.Array() {
		role := entry.Get("role").String()
		if role == "system" {
			if req.SystemText == "" {
				req.SystemText = entry.Get("content").String()
			}
			continue
		}

		if entry.Get("includeImage").Bool() && image != nil {
			if req.ImageIndex >= 0 {
				log.Warnf("multiple messages flagged includeImage; keeping the first (index %d)", req.ImageIndex)
			} else {
				req.ImageIndex = len(req.Conversation)
			}
		}

		req.Conversation = append(req.Conversation, ChatMessage{
			Role:    role,
			Content: entry.Get("content").String(),
		})
	}

	if image != nil && req.ImageIndex < 0 {
		// No message claimed the attachment; drop it rather than guess.
		log.Debug("imageData present but no message flagged includeImage; dropping attachment")
		image = nil
	}
	req.Image = image

	return req, nil
}
