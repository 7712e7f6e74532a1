package sqltext

import (
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
)

// Cache stores generated statements by key.
type Cache interface {
	Get(key string) (*Statement, bool)
	Set(key string, st *Statement)

	// Close releases resources held by the cache.
	Close()
}

// MapCache is an unbounded, append-only Cache. Concurrent writers for the
// same key store equivalent statements, so the last store wins.
type MapCache struct {
	entries sync.Map // string -> *Statement
}

var _ Cache = (*MapCache)(nil)

func NewMapCache() *MapCache {
	return &MapCache{}
}

func (c *MapCache) Get(key string) (*Statement, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Statement), true
}

func (c *MapCache) Set(key string, st *Statement) {
	c.entries.Store(key, st)
}

func (c *MapCache) Close() {}

// LRUCache bounds the number of cached statements. It is backed by
// ccache, which runs a worker goroutine until Close is called.
type LRUCache struct {
	ccache    *ccache.Cache[*Statement]
	closeOnce sync.Once
}

var _ Cache = (*LRUCache)(nil)

// statementTTL is effectively forever; eviction is by size only.
const statementTTL = 100 * 365 * 24 * time.Hour

func NewLRUCache(maxSize int64) *LRUCache {
	return &LRUCache{
		ccache: ccache.New(ccache.Configure[*Statement]().MaxSize(maxSize)),
	}
}

func (c *LRUCache) Get(key string) (*Statement, bool) {
	item := c.ccache.Get(key)
	if item == nil || item.Value() == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *LRUCache) Set(key string, st *Statement) {
	c.ccache.Set(key, st, statementTTL)
}

func (c *LRUCache) Close() {
	c.closeOnce.Do(func() {
		c.ccache.Stop()
	})
}

// NewCache returns an unbounded cache when size is 0 and an LRU cache
// holding at most size statements otherwise.
func NewCache(size int) Cache {
	if size <= 0 {
		return NewMapCache()
	}
	return NewLRUCache(int64(size))
}
