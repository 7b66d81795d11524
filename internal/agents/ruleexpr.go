package agents

import (
	"container/list"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// expressionCache is a thread-safe LRU cache of compiled boolean
// expressions, so a requirement-trigger rule only pays compilation cost
// once across however many jobs evaluate it. It also keeps a running
// hit/miss count so a caller on a hot path (the refinement gate runs once
// per iteration) can log cache pressure instead of flying blind.
type expressionCache struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
	mu       sync.RWMutex
	hits     int
	misses   int
}

type cacheEntry struct {
	key     string
	program *vm.Program
}

func newExpressionCache(capacity int) *expressionCache {
	if capacity <= 0 {
		capacity = 64
	}
	return &expressionCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// evalBool compiles (or retrieves from cache) source as a boolean
// expression over env and runs it.
func (c *expressionCache) evalBool(source string, env map[string]interface{}) (bool, error) {
	program, ok := c.lookup(source)
	if !ok {
		compiled, err := expr.Compile(source, expr.Env(env), expr.AsBool())
		if err != nil {
			return false, err
		}
		program = compiled
		c.store(source, program)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, _ := out.(bool)
	return result, nil
}

func (c *expressionCache) lookup(source string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.cache[source]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.lruList.MoveToFront(el)
	return el.Value.(*cacheEntry).program, true
}

func (c *expressionCache) store(source string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.cache[source]; ok {
		c.lruList.MoveToFront(el)
		el.Value.(*cacheEntry).program = program
		return
	}
	el := c.lruList.PushFront(&cacheEntry{key: source, program: program})
	c.cache[source] = el
	if c.lruList.Len() > c.capacity {
		oldest := c.lruList.Back()
		if oldest != nil {
			c.lruList.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// stats reports the cache's current occupancy and lifetime hit/miss count,
// so a caller can decide whether the configured capacity is under pressure.
func (c *expressionCache) stats() (size, hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lruList.Len(), c.hits, c.misses
}

// reset drops every cached program and zeroes the hit/miss counters, so a
// later stats() reflects only what happened after the reset.
func (c *expressionCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lruList = list.New()
	c.hits = 0
	c.misses = 0
}
