// Package connector implements the polling connector framework:
// per-item change detection, persisted cursor state, a distributed
// single-writer lease, and metrics. Connectors are generic over a
// {fetcher, changeDetector, transformer} triple and are instantiated
// from a registry of named factories.
package connector

import (
	"context"
	"encoding/json"
)

// FetchResult is what a provider-specific fetcher returns.
type FetchResult[Item any] struct {
	Items []Item
}

// Fetcher retrieves the current set of items from a provider.
type Fetcher[Provider any, Item any] func(ctx context.Context, provider Provider) (FetchResult[Item], error)

// ChangeDetector computes a version string for an item; equality with
// the previously stored version for that item's key means "no publish
// needed".
type ChangeDetector[Item any] func(item Item) (string, error)

// Transformer converts one raw item into the output type published to
// OutputStream. Connectors feeding raw-input-signals
// transform into a RawSignal-shaped map, not the canonical Signal —
// normalization into Signal is the ingestion worker's job.
type Transformer[Item any, Out any] func(item Item) (Out, error)

// ItemKeyer extracts a stable per-item key. When absent, the generic
// connector falls back to item.id if present via reflection-free JSON
// round trip, else a stable JSON serialization.
type ItemKeyer[Item any] func(item Item) (string, error)

// PollSummary reports the outcome of one poll.
type PollSummary struct {
	Fetched          int
	Published        int
	SkippedUnchanged int
	Failed           int
}

// State is the persisted per-connector cursor blob.
type State struct {
	ItemVersions map[string]string `json:"itemVersions"`
}

// DefaultItemKey implements the fallback rule: item.id if present
// (detected via a JSON round trip so Item can be any concrete struct),
// else a stable JSON serialization of the whole item.
func DefaultItemKey[Item any](item Item) (string, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	var withID struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &withID); err == nil && withID.ID != "" {
		return withID.ID, nil
	}
	return string(raw), nil
}
