// Package trigger turns semantic events into AI-authored community posts
// and journal comments. Each chain of related events rotates through the
// persona roster independently.
package trigger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

// Rotation holds one round-robin counter per chain key.
type Rotation struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewRotation returns an empty rotation.
func NewRotation() *Rotation {
	return &Rotation{counters: map[string]int{}}
}

// Next returns pool[current % len(pool)] for chainKey and advances the
// counter. An empty pool yields the default persona without advancing.
func (r *Rotation) Next(chainKey string, pool []model.Persona) model.Persona {
	if len(pool) == 0 {
		return model.DefaultPersona()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.counters[chainKey]
	r.counters[chainKey] = cur + 1
	return pool[cur%len(pool)]
}

// Counter returns the current counter value for chainKey.
func (r *Rotation) Counter(chainKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[chainKey]
}

// ChainKey derives the rotation chain from a trigger. Journal entries are
// split by mood so a run of bad days rotates separately from good ones.
func ChainKey(kind model.TriggerKind, data map[string]any) string {
	if kind == model.TriggerJournalAdded {
		mood := strings.ToLower(strings.TrimSpace(stringField(data, "mood")))
		if mood == "" {
			mood = "neutral"
		}
		return fmt.Sprintf("%s_%s", kind, mood)
	}
	return string(kind)
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
