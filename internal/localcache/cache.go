// Package localcache is the durable key/value layer every collection is
// written through to. Values are JSON snapshots; reads never fail.
package localcache

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Cache maps collection keys to serialized snapshots.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Load decodes the value stored under key. A missing or corrupt value yields
// def; corruption is logged and otherwise ignored.
func Load[T any](c Cache, key string, def T) T {
	raw, ok := c.Get(key)
	if !ok || len(raw) == 0 {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("localcache: corrupt value, using default")
		return def
	}
	return v
}

// Save encodes v as JSON under key.
func Save(c Cache, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(key, raw)
}
