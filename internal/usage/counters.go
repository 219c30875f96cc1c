// Package usage provides token-usage accounting for the chat relay.
// This file keeps process-wide totals, logged at shutdown. These counters are
// the only state that survives across requests, and only for logging.
package usage

import (
	"math"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Counters accumulates process-wide usage totals.
type Counters struct {
	requests        atomic.Int64
	failures        atomic.Int64
	inputTokens     atomic.Int64
	cacheReadTokens atomic.Int64
	outputTokens    atomic.Int64
	savingsMicroUSD atomic.Int64
}

// Sink returns a usage sink that feeds these counters.
func (c *Counters) Sink() Sink {
	return func(sample Sample, breakdown CostBreakdown) {
		c.requests.Add(1)
		if sample.Status != "success" {
			c.failures.Add(1)
		}
		c.inputTokens.Add(sample.Stats.InputTokens)
		c.cacheReadTokens.Add(sample.Stats.CacheReadTokens)
		c.outputTokens.Add(sample.Stats.OutputTokens)
		c.savingsMicroUSD.Add(int64(math.Round(breakdown.Savings * 1e6)))
	}
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() map[string]any {
	return map[string]any{
		"requests":          c.requests.Load(),
		"failures":          c.failures.Load(),
		"input_tokens":      c.inputTokens.Load(),
		"cache_read_tokens": c.cacheReadTokens.Load(),
		"output_tokens":     c.outputTokens.Load(),
		"savings_usd":       float64(c.savingsMicroUSD.Load()) / 1e6,
	}
}

// LogTotals writes the accumulated totals to the log. Called at shutdown.
func (c *Counters) LogTotals() {
	log.WithFields(log.Fields(c.Snapshot())).Info("usage totals")
}
