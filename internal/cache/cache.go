// Package cache memoizes monthly summaries per user.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"expensetracker/internal/core"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// LRU is a size-bounded cache whose entries also expire after a TTL.
type LRU[T any] struct {
	lru *expirable.LRU[string, T]
}

var _ Cache[int] = (*LRU[int])(nil)

func NewLRU[T any](size int, ttl time.Duration) *LRU[T] {
	return &LRU[T]{lru: expirable.NewLRU[string, T](size, nil, ttl)}
}

func (c *LRU[T]) Get(key string) (T, bool) { return c.lru.Get(key) }

func (c *LRU[T]) Set(key string, data T) { c.lru.Add(key, data) }

func (c *LRU[T]) Delete(key string) { c.lru.Remove(key) }

func (c *LRU[T]) Size() int { return c.lru.Len() }

// DeletePrefix removes every key starting with prefix and returns how many went.
func (c *LRU[T]) DeletePrefix(prefix string) int {
	n := 0
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) && c.lru.Remove(k) {
			n++
		}
	}
	return n
}

// SummaryCache keys summaries by user and month. Each user carries a
// generation that every invalidation bumps, so a summary computed before an
// invalidation is never stored after it.
type SummaryCache struct {
	lru *LRU[core.MonthSummary]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewSummaryCache(size int, ttl time.Duration) *SummaryCache {
	return &SummaryCache{
		lru:  NewLRU[core.MonthSummary](size, ttl),
		gens: make(map[string]uint64),
	}
}

func summaryKey(userID string, ym core.YearMonth) string {
	return userID + "|" + string(ym)
}

func (c *SummaryCache) Get(userID string, ym core.YearMonth) (core.MonthSummary, bool) {
	return c.lru.Get(summaryKey(userID, ym))
}

// Generation returns the user's current generation. Read it before loading
// the data a summary is built from and hand it to SetIfCurrent.
func (c *SummaryCache) Generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID]
}

// SetIfCurrent stores s unless the user was invalidated since gen was read.
func (c *SummaryCache) SetIfCurrent(userID string, s core.MonthSummary, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return false
	}
	c.lru.Set(summaryKey(userID, s.YearMonth), s)
	return true
}

func (c *SummaryCache) Set(userID string, s core.MonthSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Set(summaryKey(userID, s.YearMonth), s)
}

func (c *SummaryCache) Invalidate(userID string, ym core.YearMonth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID]++
	c.lru.Delete(summaryKey(userID, ym))
}

// InvalidateUser drops every cached month of the user.
func (c *SummaryCache) InvalidateUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID]++
	return c.lru.DeletePrefix(userID + "|")
}

func (c *SummaryCache) Size() int { return c.lru.Size() }
