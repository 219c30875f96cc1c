// Package anthropic implements the upstream invoker and response extractor
// for the Anthropic Messages API.
package anthropic

import (
	relayerrors "github.com/sparkmatch/chatrelay/internal/errors"
)

// ModelSpec maps a client-facing model type onto a concrete upstream model
// and its output-token ceiling. The ceiling keeps replies concise and
// cost-bounded; it is a hard cap, not a target.
type ModelSpec struct {
	ID        string
	MaxTokens int
}

// modelTable is the explicit model lookup. Both "haiku" and "sonnet"
// currently route to the same high-quality model; that is a product decision
// to keep reply quality uniform while the pricing tiers are evaluated.
var modelTable = map[string]ModelSpec{
	"haiku":  {ID: "claude-3-5-sonnet-20241022", MaxTokens: 120},
	"sonnet": {ID: "claude-3-5-sonnet-20241022", MaxTokens: 150},
}

// ResolveModel looks up the model spec for a client model type. Unmapped
// types fail loudly rather than silently defaulting.
func ResolveModel(modelType string) (ModelSpec, error) {
	spec, ok := modelTable[modelType]
	if !ok {
		return ModelSpec{}, relayerrors.NewUnknownModel(modelType)
	}
	return spec, nil
}

// KnownModelTypes returns the client-facing model types in the table.
func KnownModelTypes() []string {
	types := make([]string, 0, len(modelTable))
	for t := range modelTable {
		types = append(types, t)
	}
	return types
}
