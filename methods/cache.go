// Package methods maps method identities to cached generators and resolves
// dynamic and generic dispatch.
package methods

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/object"
	"golang.org/x/sync/singleflight"
)

// AssemblyRef names the unit (package, module, file set) that defines a method.
type AssemblyRef string

// Provider produces the generator for a method on a cache miss, together
// with the assembly defining it.
type Provider func(ctx context.Context, method object.MethodID) (instruction.Generator, AssemblyRef, error)

// Invalidation describes one eviction.
type Invalidation struct {
	Prefix   string // empty for assembly invalidations
	Assembly AssemblyRef
	Removed  []object.MethodID
}

// Listener is notified after every eviction that removed at least one method.
type Listener func(Invalidation)

type entry struct {
	gen      instruction.Generator
	assembly AssemblyRef
}

// Cache memoizes generators per method and programs per generator version.
// It is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	entries   map[object.MethodID]entry
	index     *trie
	programs  map[object.VersionedName]*instruction.Program
	listeners map[int]Listener
	nextID    int
	epoch     uint64

	group  singleflight.Group
	logger *slog.Logger
}

// NewCache creates an empty cache. A nil logger discards below error level.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return &Cache{
		entries:   make(map[object.MethodID]entry),
		index:     newTrie(),
		programs:  make(map[object.VersionedName]*instruction.Program),
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Lookup returns a cached generator without invoking any provider.
func (c *Cache) Lookup(method object.MethodID) (instruction.Generator, AssemblyRef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[method]
	return e.gen, e.assembly, ok
}

// GetCachedGenerator returns the generator for method, invoking provider
// only on a miss. Concurrent misses for the same method share one call.
func (c *Cache) GetCachedGenerator(ctx context.Context, method object.MethodID, provider Provider) (instruction.Generator, error) {
	if gen, _, ok := c.Lookup(method); ok {
		return gen, nil
	}

	v, err, _ := c.group.Do("gen:"+string(method), func() (any, error) {
		if gen, _, ok := c.Lookup(method); ok {
			return gen, nil
		}
		c.mu.RLock()
		epoch := c.epoch
		c.mu.RUnlock()

		c.logger.DebugContext(ctx, "cache miss", "method", method)
		gen, assembly, err := provider(ctx, method)
		if err != nil {
			return nil, fmt.Errorf("load generator for %s: %w", method, err)
		}
		if gen == nil {
			return nil, fmt.Errorf("load generator for %s: provider returned no generator", method)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// An invalidation while the provider ran may have made gen stale; hand
		// it to this caller but do not publish it.
		if c.epoch == epoch {
			c.entries[method] = entry{gen: gen, assembly: assembly}
			c.index.insert(method)
		}
		return gen, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(instruction.Generator), nil
}

// Program returns the materialized instructions of gen, building them once
// per generator version.
func (c *Cache) Program(gen instruction.Generator) (*instruction.Program, error) {
	name := gen.Name()
	c.mu.RLock()
	p, ok := c.programs[name]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.group.Do("program:"+name.String(), func() (any, error) {
		c.mu.RLock()
		p, ok := c.programs[name]
		c.mu.RUnlock()
		if ok {
			return p, nil
		}
		p, err := instruction.Build(gen)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.programs[name] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*instruction.Program), nil
}

// Methods returns the cached method IDs, sorted.
func (c *Cache) Methods() []object.MethodID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]object.MethodID, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Len returns the number of cached methods.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate evicts every method whose path starts with the dotted prefix,
// segment-wise: "A.B" evicts "A.B" and "A.B.C" but not "A.Bx" or "A".
// An empty prefix evicts everything. It returns the removed IDs, sorted.
func (c *Cache) Invalidate(prefix string) []object.MethodID {
	c.mu.Lock()
	removed := c.index.removePrefix(object.SplitPath(prefix))
	c.evictLocked(removed)
	listeners := c.listenersLocked()
	c.mu.Unlock()

	sortIDs(removed)
	c.notify(listeners, Invalidation{Prefix: prefix, Removed: removed})
	return removed
}

// InvalidateAssembly evicts every method defined by ref.
func (c *Cache) InvalidateAssembly(ref AssemblyRef) []object.MethodID {
	c.mu.Lock()
	var removed []object.MethodID
	for id, e := range c.entries {
		if e.assembly == ref {
			removed = append(removed, id)
			c.index.remove(id)
		}
	}
	c.evictLocked(removed)
	listeners := c.listenersLocked()
	c.mu.Unlock()

	sortIDs(removed)
	c.notify(listeners, Invalidation{Assembly: ref, Removed: removed})
	return removed
}

// Subscribe registers a listener; the returned function unregisters it.
func (c *Cache) Subscribe(l Listener) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Cache) evictLocked(removed []object.MethodID) {
	for _, id := range removed {
		if e, ok := c.entries[id]; ok {
			delete(c.programs, e.gen.Name())
			delete(c.entries, id)
		}
	}
	c.epoch++
}

func (c *Cache) listenersLocked() []Listener {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = c.listeners[id]
	}
	return out
}

func (c *Cache) notify(listeners []Listener, ev Invalidation) {
	if len(ev.Removed) == 0 {
		return
	}
	c.logger.Info("invalidate methods", "prefix", ev.Prefix, "assembly", string(ev.Assembly), "removed", len(ev.Removed))
	for _, l := range listeners {
		l(ev)
	}
}

func sortIDs(ids []object.MethodID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
