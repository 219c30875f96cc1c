// Package relay implements the chat relay pipeline.
// This file plans the provider-side cache window for a conversation.
package relay

// WindowPlan describes how a conversation is split into cached history and a
// fresh trailing window. It is derived per request and never stored.
type WindowPlan struct {
	// TotalMessages is the conversation length (system message excluded).
	TotalMessages int

	// FreshWindowSize is how many trailing messages stay uncached.
	FreshWindowSize int

	// CacheBoundaryIndex is the index of the last message marked for
	// provider-side caching, or -1 when the conversation is too short and
	// only the system prompt is cached.
	CacheBoundaryIndex int
}

// freshWindowSize picks the fresh-window size for a conversation length.
// Longer conversations need less fresh context: the marginal value of very
// old cached turns is already realized, so the cacheable prefix grows.
func freshWindowSize(totalMessages int) int {
	switch {
	case totalMessages < 100:
		return 50
	case totalMessages < 500:
		return 30
	case totalMessages < 1000:
		return 20
	default:
		return 15
	}
}

// PlanWindow computes the cache window for a conversation. The boundary is
// recomputed fresh on every request; the relay keeps no cross-request state,
// accepting that the provider-side hit rate is approximate rather than exact.
func PlanWindow(totalMessages int) WindowPlan {
	fresh := freshWindowSize(totalMessages)
	boundary := totalMessages - fresh - 1
	if boundary < 0 {
		boundary = -1
	}
	return WindowPlan{
		TotalMessages:      totalMessages,
		FreshWindowSize:    fresh,
		CacheBoundaryIndex: boundary,
	}
}
