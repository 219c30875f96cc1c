// Package usage provides token-usage accounting for the chat relay.
// This file estimates token counts locally, before the upstream call, so the
// cache plan diagnostics can report the approximate size of the cacheable
// prefix. Estimates are observability-only and never affect the request.
package usage

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// EstimateTokens returns an approximate token count for text. It uses the
// cl100k_base tokenizer when available and falls back to a bytes/4 heuristic
// if the tokenizer cannot be initialized.
func EstimateTokens(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warnf("tokenizer unavailable, falling back to rough token estimates: %v", err)
			return
		}
		codec = c
	})

	if codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}

	// Rough heuristic: ~4 bytes per token for English text.
	return len(text) / 4
}
