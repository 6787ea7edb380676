package membrane

import (
	"weak"

	"github.com/dop251/goja"
)

// sweepInterval is the number of inserts between full sweeps of expired entries.
const sweepInterval = 256

// IdentityCache maps raw objects to the wrapper standing for them in the other
// realm. Wrappers are held weakly; the reverse index recovers the raw object
// for a live wrapper. Not safe for concurrent use.
type IdentityCache struct {
	forward map[*goja.Object]weak.Pointer[goja.Object]
	reverse map[weak.Pointer[goja.Object]]*goja.Object
	inserts int
}

// NewIdentityCache creates an empty cache.
func NewIdentityCache() *IdentityCache {
	return &IdentityCache{
		forward: make(map[*goja.Object]weak.Pointer[goja.Object]),
		reverse: make(map[weak.Pointer[goja.Object]]*goja.Object),
	}
}

// Lookup returns the live wrapper for raw. An expired entry is a miss and is
// removed.
func (c *IdentityCache) Lookup(raw *goja.Object) (*goja.Object, bool) {
	handle, ok := c.forward[raw]
	if !ok {
		return nil, false
	}
	if wrapper := handle.Value(); wrapper != nil {
		return wrapper, true
	}
	delete(c.forward, raw)
	delete(c.reverse, handle)
	return nil, false
}

// Record stores wrapper as the stand-in for raw, replacing any previous entry.
func (c *IdentityCache) Record(raw, wrapper *goja.Object) {
	if raw == nil || wrapper == nil {
		return
	}
	if old, ok := c.forward[raw]; ok {
		delete(c.reverse, old)
	}
	handle := weak.Make(wrapper)
	c.forward[raw] = handle
	c.reverse[handle] = raw

	c.inserts++
	if c.inserts%sweepInterval == 0 {
		c.Prune()
	}
}

// Original returns the raw object a live wrapper stands for.
func (c *IdentityCache) Original(wrapper *goja.Object) (*goja.Object, bool) {
	if wrapper == nil {
		return nil, false
	}
	raw, ok := c.reverse[weak.Make(wrapper)]
	return raw, ok
}

// Len returns the number of entries, including expired ones not yet pruned.
func (c *IdentityCache) Len() int {
	return len(c.forward)
}

// Prune removes every entry whose wrapper has been collected and returns the
// number removed.
func (c *IdentityCache) Prune() int {
	removed := 0
	for raw, handle := range c.forward {
		if handle.Value() == nil {
			delete(c.forward, raw)
			delete(c.reverse, handle)
			removed++
		}
	}
	return removed
}
