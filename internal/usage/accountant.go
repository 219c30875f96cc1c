// Package usage provides token-usage accounting for the chat relay. It parses
// provider usage fields, derives cache-hit rate and cost estimates, and fans
// each sample out to the configured observability sinks.
package usage

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/sparkmatch/chatrelay/internal/config"
	"github.com/sparkmatch/chatrelay/internal/logging"
)

// Stats holds the token counts reported by the provider for one request.
type Stats struct {
	InputTokens         int64 `json:"inputTokens"`
	CacheCreationTokens int64 `json:"cacheCreationTokens"`
	CacheReadTokens     int64 `json:"cacheReadTokens"`
	OutputTokens        int64 `json:"outputTokens"`
}

// ParseStats extracts usage fields from a raw provider response.
// Missing fields read as zero.
func ParseStats(raw []byte) Stats {
	usage := gjson.GetBytes(raw, "usage")
	return Stats{
		InputTokens:         usage.Get("input_tokens").Int(),
		CacheCreationTokens: usage.Get("cache_creation_input_tokens").Int(),
		CacheReadTokens:     usage.Get("cache_read_input_tokens").Int(),
		OutputTokens:        usage.Get("output_tokens").Int(),
	}
}

// CacheHitRate is the fraction of input tokens served from the provider-side
// cache. Returns 0 when no input tokens were recorded.
func (s Stats) CacheHitRate() float64 {
	total := s.InputTokens + s.CacheReadTokens
	if total == 0 {
		return 0
	}
	return float64(s.CacheReadTokens) / float64(total)
}

// CostBreakdown compares what the request cost with caching against what it
// would have cost without.
type CostBreakdown struct {
	// NormalCost is the hypothetical cost with every input token at the
	// standard price.
	NormalCost float64 `json:"normalCost"`

	// CachedCost is the estimated actual cost given cache reads and writes.
	CachedCost float64 `json:"cachedCost"`

	// Savings is NormalCost - CachedCost.
	Savings float64 `json:"savings"`
}

// ComputeCost estimates request cost under the given pricing constants.
// Prices are per million tokens.
func ComputeCost(pricing config.PricingConfig, s Stats) CostBreakdown {
	perTok := func(perMTok float64, tokens int64) float64 {
		return perMTok * float64(tokens) / 1e6
	}

	normal := perTok(pricing.InputPerMTok, s.InputTokens+s.CacheReadTokens)
	cached := perTok(pricing.InputPerMTok, s.InputTokens) +
		perTok(pricing.CacheReadPerMTok, s.CacheReadTokens) +
		perTok(pricing.CacheWritePerMTok, s.CacheCreationTokens)

	return CostBreakdown{
		NormalCost: normal,
		CachedCost: cached,
		Savings:    normal - cached,
	}
}

// Sample is one accounted request.
type Sample struct {
	RequestID string
	Model     string
	Status    string
	Stats     Stats
	Latency   time.Duration

	// Cache window diagnostics.
	TotalMessages   int
	FreshWindow     int
	CacheBoundary   int
	EstPrefixTokens int
}

// Sink receives accounted samples, e.g. the websocket hub or the usage DB.
// Sinks must not block; slow consumers buffer internally.
type Sink func(Sample, CostBreakdown)

// Accountant derives cost metrics per request and distributes samples to
// sinks. It never blocks or fails the response path.
type Accountant struct {
	mu      sync.RWMutex
	pricing config.PricingConfig
	sinks   []Sink
}

// NewAccountant creates an accountant with the given pricing constants.
func NewAccountant(pricing config.PricingConfig) *Accountant {
	return &Accountant{pricing: pricing}
}

// SetPricing replaces the pricing constants. Used by config hot reload.
func (a *Accountant) SetPricing(pricing config.PricingConfig) {
	a.mu.Lock()
	a.pricing = pricing
	a.mu.Unlock()
}

// AddSink registers an additional consumer of accounted samples.
func (a *Accountant) AddSink(sink Sink) {
	a.mu.Lock()
	a.sinks = append(a.sinks, sink)
	a.mu.Unlock()
}

// Record accounts one request: computes the cost breakdown, emits the
// per-request usage log line, and fans out to sinks.
func (a *Accountant) Record(sample Sample) CostBreakdown {
	a.mu.RLock()
	pricing := a.pricing
	sinks := a.sinks
	a.mu.RUnlock()

	breakdown := ComputeCost(pricing, sample.Stats)

	if logging.ZapEnabled() {
		logging.Sugar().Infow("chat request accounted",
			"request_id", sample.RequestID,
			"model", sample.Model,
			"status", sample.Status,
			"input_tokens", sample.Stats.InputTokens,
			"cache_creation_tokens", sample.Stats.CacheCreationTokens,
			"cache_read_tokens", sample.Stats.CacheReadTokens,
			"output_tokens", sample.Stats.OutputTokens,
			"cache_hit_rate", sample.Stats.CacheHitRate(),
			"savings_usd", breakdown.Savings,
			"latency_ms", sample.Latency.Milliseconds(),
			"total_messages", sample.TotalMessages,
			"fresh_window", sample.FreshWindow,
			"cache_boundary", sample.CacheBoundary,
		)
	} else {
		log.WithFields(log.Fields{
			"request_id":            sample.RequestID,
			"model":                 sample.Model,
			"status":                sample.Status,
			"input_tokens":          sample.Stats.InputTokens,
			"cache_creation_tokens": sample.Stats.CacheCreationTokens,
			"cache_read_tokens":     sample.Stats.CacheReadTokens,
			"output_tokens":         sample.Stats.OutputTokens,
			"cache_hit_rate":        sample.Stats.CacheHitRate(),
			"savings_usd":           breakdown.Savings,
			"latency_ms":            sample.Latency.Milliseconds(),
			"total_messages":        sample.TotalMessages,
			"fresh_window":          sample.FreshWindow,
			"cache_boundary":        sample.CacheBoundary,
		}).Info("chat request accounted")
	}

	for _, sink := range sinks {
		sink(sample, breakdown)
	}

	return breakdown
}
