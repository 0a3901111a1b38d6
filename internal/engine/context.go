package engine

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"
)

// Context is the key-value store scripts and guards share for the lifetime
// of one run. It is the only state that persists across transitions besides
// the current-state pointer, and it survives hot reloads.
//
// The loop goroutine is the single writer (scripts run there); the RWMutex
// exists so hook consumers and telemetry can snapshot concurrently.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewContext returns an empty context. One is created at Start and
// discarded at Stop.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Get returns the value for key, or nil when absent. Scripts treat missing
// keys as nil, so no ok-bool on this surface.
func (c *Context) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Set stores a value.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Delete removes a key, reporting whether it existed.
func (c *Context) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	delete(c.values, key)
	return ok
}

// Len returns the number of keys. The load heuristic feeds on it.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Keys returns the keys sorted. The power heuristic scans them for
// peripheral-suggestive names.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Snapshot returns a copy of the map. The copy is shallow: scripts store
// plain values, and hook consumers are expected to read, not mutate.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}

// EncodedSize returns the serialized byte size of the context, feeding the
// memory heuristic. Unmarshalable values (which scripts cannot normally
// produce) degrade to a rough per-key estimate.
func (c *Context) EncodedSize() int {
	snap := c.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return len(snap) * 16
	}
	return len(data)
}
