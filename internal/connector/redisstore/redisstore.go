// Package redisstore implements connector.StateStore against Redis,
// using the "connector:state:<name>" hash layout.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arc-self/riskstream/internal/connector"
)

const stateVersion = 1

// Store implements connector.StateStore.
type Store struct {
	client redis.UniversalClient
}

// New builds a Store.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func stateKey(name string) string { return "connector:state:" + name }

func (s *Store) Load(ctx context.Context, name string) (connector.State, error) {
	vals, err := s.client.HGetAll(ctx, stateKey(name)).Result()
	if err != nil {
		return connector.State{}, fmt.Errorf("redisstore: load %s: %w", name, err)
	}
	latest, ok := vals["latest"]
	if !ok || latest == "" {
		return connector.State{ItemVersions: make(map[string]string)}, nil
	}
	var state connector.State
	if err := json.Unmarshal([]byte(latest), &state); err != nil {
		return connector.State{}, fmt.Errorf("redisstore: parse state %s: %w", name, err)
	}
	if state.ItemVersions == nil {
		state.ItemVersions = make(map[string]string)
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, name string, state connector.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redisstore: marshal state %s: %w", name, err)
	}
	err = s.client.HSet(ctx, stateKey(name), map[string]any{
		"latest":    string(raw),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   stateVersion,
	}).Err()
	if err != nil {
		return fmt.Errorf("redisstore: save state %s: %w", name, err)
	}
	return nil
}

var _ connector.StateStore = (*Store)(nil)
