// Package audit provides audit logging for the chat relay. It captures
// request metadata in a bounded in-memory ring for debugging via the
// management API. Entries never include message content.
package audit

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one audited chat request.
type Entry struct {
	ID              string        `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	RequestID       string        `json:"request_id,omitempty"`
	Model           string        `json:"model,omitempty"`
	Endpoint        string        `json:"endpoint"`
	Method          string        `json:"method"`
	StatusCode      int           `json:"status_code"`
	Latency         time.Duration `json:"latency_ms"`
	InputTokens     int64         `json:"input_tokens,omitempty"`
	CacheReadTokens int64         `json:"cache_read_tokens,omitempty"`
	OutputTokens    int64         `json:"output_tokens,omitempty"`
	Error           string        `json:"error,omitempty"`
	ClientIP        string        `json:"client_ip,omitempty"`
}

// Logger stores audit entries in a bounded ring.
type Logger struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
	enabled    bool
	idGen      uint64
}

// NewLogger creates an audit logger retaining at most maxEntries entries.
func NewLogger(enabled bool, maxEntries int) *Logger {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Logger{
		entries:    make([]Entry, 0, maxEntries),
		maxEntries: maxEntries,
		enabled:    enabled,
	}
}

// Log appends an entry, evicting the oldest tenth when full.
func (l *Logger) Log(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.idGen++
	entry.ID = fmt.Sprintf("audit-%d-%d", entry.Timestamp.UnixMilli(), l.idGen)

	if len(l.entries) >= l.maxEntries {
		removeCount := l.maxEntries / 10
		if removeCount < 1 {
			removeCount = 1
		}
		l.entries = l.entries[removeCount:]
	}

	l.entries = append(l.entries, entry)
}

// Recent returns up to limit entries, newest first.
func (l *Logger) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}

	out := make([]Entry, 0, limit)
	for i := len(l.entries) - 1; i >= len(l.entries)-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Len returns the number of retained entries.
func (l *Logger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
