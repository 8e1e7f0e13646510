package observatory

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is the persisted key-value store the aggregator keeps flags, stats
// and logs in.
//
// Implementations do not need to provide transactions; the aggregator
// serializes read-modify-write sequences per domain itself.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, keys ...string) error
}

func getJSON[V any](ctx context.Context, store Store, key string) (output V, ok bool, err error) {
	var data []byte
	data, ok, err = store.Get(ctx, key)
	if err != nil || !ok {
		return
	}
	if err = json.Unmarshal(data, &output); err != nil {
		err = fmt.Errorf("decoding %q: %w", key, err)
		ok = false
	}
	return
}

func setJSON[V any](ctx context.Context, store Store, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return store.Set(ctx, key, data)
}
