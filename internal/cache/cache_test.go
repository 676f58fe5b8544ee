package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"expensetracker/internal/core"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpires(t *testing.T) {
	c := NewLRU[string](4, 20*time.Millisecond)
	c.Set("k", "v")
	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestSummaryCacheInvalidateUser(t *testing.T) {
	c := NewSummaryCache(16, time.Minute)
	c.Set("u1", core.MonthSummary{YearMonth: "2024-01"})
	c.Set("u1", core.MonthSummary{YearMonth: "2024-02"})
	c.Set("u10", core.MonthSummary{YearMonth: "2024-01"})

	_, ok := c.Get("u1", "2024-02")
	assert.True(t, ok)

	c.Invalidate("u1", "2024-02")
	_, ok = c.Get("u1", "2024-02")
	assert.False(t, ok)

	assert.Equal(t, 1, c.InvalidateUser("u1"))
	_, ok = c.Get("u10", "2024-01")
	assert.True(t, ok, "prefix must not match other users")
	assert.Equal(t, 1, c.Size())
}

func TestSummaryCacheSkipsStaleWrite(t *testing.T) {
	c := NewSummaryCache(16, time.Minute)
	gen := c.Generation("u1")

	c.Invalidate("u1", "2024-03")
	assert.False(t, c.SetIfCurrent("u1", core.MonthSummary{YearMonth: "2024-03"}, gen))
	_, ok := c.Get("u1", "2024-03")
	assert.False(t, ok)

	gen = c.Generation("u1")
	assert.True(t, c.SetIfCurrent("u1", core.MonthSummary{YearMonth: "2024-03"}, gen))
	_, ok = c.Get("u1", "2024-03")
	assert.True(t, ok)

	c.InvalidateUser("u1")
	assert.False(t, c.SetIfCurrent("u1", core.MonthSummary{YearMonth: "2024-04"}, gen))
	assert.True(t, c.SetIfCurrent("u2", core.MonthSummary{YearMonth: "2024-04"}, 0), "other users keep their generation")
}
