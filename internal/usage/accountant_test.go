package usage

import (
	"testing"

	"github.com/sparkmatch/chatrelay/internal/config"
)

func TestParseStats(t *testing.T) {
	raw := []byte(`{"usage":{"input_tokens":120,"cache_creation_input_tokens":40,"cache_read_input_tokens":880,"output_tokens":35}}`)
	stats := ParseStats(raw)

	if stats.InputTokens != 120 {
		t.Errorf("InputTokens = %d, want 120", stats.InputTokens)
	}
	if stats.CacheCreationTokens != 40 {
		t.Errorf("CacheCreationTokens = %d, want 40", stats.CacheCreationTokens)
	}
	if stats.CacheReadTokens != 880 {
		t.Errorf("CacheReadTokens = %d, want 880", stats.CacheReadTokens)
	}
	if stats.OutputTokens != 35 {
		t.Errorf("OutputTokens = %d, want 35", stats.OutputTokens)
	}
}

func TestParseStatsMissingFields(t *testing.T) {
	stats := ParseStats([]byte(`{"content":[]}`))
	if stats != (Stats{}) {
		t.Errorf("stats = %+v, want all zero", stats)
	}
}

func TestCacheHitRate(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  float64
	}{
		{"no tokens", Stats{}, 0},
		{"all fresh", Stats{InputTokens: 100}, 0},
		{"all cached", Stats{CacheReadTokens: 100}, 1},
		{"mixed", Stats{InputTokens: 100, CacheReadTokens: 900}, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.CacheHitRate(); got != tt.want {
				t.Errorf("CacheHitRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeCostSavings(t *testing.T) {
	pricing := config.DefaultPricing()
	stats := Stats{InputTokens: 100, CacheCreationTokens: 0, CacheReadTokens: 900, OutputTokens: 25}

	breakdown := ComputeCost(pricing, stats)

	// 1000 input-equivalent tokens at 0.80/MTok.
	wantNormal := 0.80 * 1000 / 1e6
	if diff := breakdown.NormalCost - wantNormal; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("NormalCost = %v, want %v", breakdown.NormalCost, wantNormal)
	}
	if breakdown.Savings <= 0 {
		t.Errorf("Savings = %v, want positive when cache reads dominate", breakdown.Savings)
	}
	if breakdown.CachedCost+breakdown.Savings != breakdown.NormalCost {
		t.Error("breakdown does not balance")
	}
}

func TestComputeCostCacheWritePenalty(t *testing.T) {
	// A pure cache write costs slightly more than uncached input
	// (1.00 vs 0.80 per MTok) so savings go negative on the first request.
	pricing := config.DefaultPricing()
	stats := Stats{CacheCreationTokens: 1000}

	breakdown := ComputeCost(pricing, stats)
	if breakdown.Savings >= 0 {
		t.Errorf("Savings = %v, want negative for a write-only request", breakdown.Savings)
	}
}

func TestAccountantFansOutToSinks(t *testing.T) {
	accountant := NewAccountant(config.DefaultPricing())

	var got []Sample
	accountant.AddSink(func(s Sample, _ CostBreakdown) {
		got = append(got, s)
	})
	accountant.AddSink(func(s Sample, _ CostBreakdown) {
		got = append(got, s)
	})

	sample := Sample{RequestID: "r-1", Model: "haiku", Status: "success", Stats: Stats{InputTokens: 10}}
	breakdown := accountant.Record(sample)

	if len(got) != 2 {
		t.Fatalf("sink deliveries = %d, want 2", len(got))
	}
	if got[0].RequestID != "r-1" || got[1].RequestID != "r-1" {
		t.Error("sinks received the wrong sample")
	}
	if breakdown.NormalCost <= 0 {
		t.Errorf("NormalCost = %v, want positive", breakdown.NormalCost)
	}
}

func TestAccountantSetPricing(t *testing.T) {
	accountant := NewAccountant(config.DefaultPricing())
	stats := Stats{InputTokens: 1_000_000}

	before := accountant.Record(Sample{Stats: stats})

	doubled := config.DefaultPricing()
	doubled.InputPerMTok *= 2
	accountant.SetPricing(doubled)

	after := accountant.Record(Sample{Stats: stats})
	if after.NormalCost != before.NormalCost*2 {
		t.Errorf("NormalCost after reprice = %v, want %v", after.NormalCost, before.NormalCost*2)
	}
}
