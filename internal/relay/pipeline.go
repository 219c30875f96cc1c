// Package relay implements the chat relay pipeline.
// This file composes the stages for one request: Normalizer -> Planner ->
// Transformer -> Invoker -> Accountant -> Extractor.
package relay

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sparkmatch/chatrelay/internal/usage"
)

// Provider is the upstream adapter. Swapping providers means writing one new
// adapter; the pipeline itself never touches provider response shapes.
type Provider interface {
	// Invoke sends the transformed payload upstream and returns the raw
	// response body. systemBlocks may be nil.
	Invoke(ctx context.Context, modelType string, systemBlocks, messages []byte) ([]byte, error)

	// ExtractText normalizes the raw response into a displayable reply.
	// It fails soft, substituting a fixed fallback string.
	ExtractText(raw []byte) string
}

// Reply is the relay's answer for one chat request.
type Reply struct {
	// Message is the plain-text assistant reply.
	Message string

	// UsedModel echoes the client's model type.
	UsedModel string

	// Stats holds the provider-reported token usage.
	Stats usage.Stats
}

// Pipeline handles chat requests end to end. It holds only process-wide
// read-only collaborators; everything else is constructed per request.
type Pipeline struct {
	provider   Provider
	accountant *usage.Accountant
}

// NewPipeline creates a pipeline over the given provider and accountant.
func NewPipeline(provider Provider, accountant *usage.Accountant) *Pipeline {
	return &Pipeline{provider: provider, accountant: accountant}
}

// Handle runs one request through the pipeline. requestID is used only for
// log correlation. Errors are classified RelayErrors for the HTTP boundary.
func (p *Pipeline) Handle(ctx context.Context, body []byte, requestID string) (*Reply, error) {
	req, err := Normalize(body)
	if err != nil {
		return nil, err
	}

	plan := PlanWindow(len(req.Conversation))

	systemBlocks := BuildSystemBlocks(req.SystemText)
	messages := BuildMessages(req.Conversation, plan.CacheBoundaryIndex, req.Image, req.ImageIndex)

	estPrefix := estimateCacheablePrefix(req, plan)
	log.WithFields(log.Fields{
		"request_id":        requestID,
		"total_messages":    plan.TotalMessages,
		"fresh_window":      plan.FreshWindowSize,
		"cache_boundary":    plan.CacheBoundaryIndex,
		"est_prefix_tokens": estPrefix,
	}).Debug("cache window planned")

	start := time.Now()
	raw, err := p.provider.Invoke(ctx, req.ModelType, systemBlocks, messages)
	latency := time.Since(start)
	if err != nil {
		p.accountant.Record(usage.Sample{
			RequestID:       requestID,
			Model:           req.ModelType,
			Status:          "error",
			Latency:         latency,
			TotalMessages:   plan.TotalMessages,
			FreshWindow:     plan.FreshWindowSize,
			CacheBoundary:   plan.CacheBoundaryIndex,
			EstPrefixTokens: estPrefix,
		})
		return nil, err
	}

	stats := usage.ParseStats(raw)
	p.accountant.Record(usage.Sample{
		RequestID:       requestID,
		Model:           req.ModelType,
		Status:          "success",
		Stats:           stats,
		Latency:         latency,
		TotalMessages:   plan.TotalMessages,
		FreshWindow:     plan.FreshWindowSize,
		CacheBoundary:   plan.CacheBoundaryIndex,
		EstPrefixTokens: estPrefix,
	})

	return &Reply{
		Message:   p.provider.ExtractText(raw),
		UsedModel: req.ModelType,
		Stats:     stats,
	}, nil
}

// estimateCacheablePrefix approximates how many tokens fall at or before the
// cache boundary (system prompt included). Observability only.
func estimateCacheablePrefix(req *NormalizedRequest, plan WindowPlan) int {
	total := 0
	if req.SystemText != "" {
		total += usage.EstimateTokens(req.SystemText)
	}
	for i := 0; i <= plan.CacheBoundaryIndex && i < len(req.Conversation); i++ {
		total += usage.EstimateTokens(req.Conversation[i].Content)
	}
	return total
}
