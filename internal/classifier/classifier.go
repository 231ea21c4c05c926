// Package classifier turns a normalized Signal into a StructuredRisk
// draft. Two implementations are provided: a deterministic rule-based
// classifier (default) and an LLM-backed one that calls an
// OpenAI-compatible chat-completions endpoint through the request
// gateway.
//
// Classification logic itself is deliberately shallow — the
// interface is the contract the worker depends on, not the rules.
package classifier

import (
	"context"

	"github.com/arc-self/riskstream/internal/domain"
)

// Classifier resolves a Signal into a StructuredRisk draft.
type Classifier interface {
	Classify(ctx context.Context, signal domain.Signal) (domain.StructuredRisk, error)
}
