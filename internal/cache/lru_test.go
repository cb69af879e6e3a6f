package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLRU(size int, ttl time.Duration) (*LRU[int], *clock) {
	c := &clock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	l := NewLRU[int](size, ttl)
	l.now = c.now
	return l, c
}

func TestLRUGetSet(t *testing.T) {
	l, _ := newTestLRU(2, time.Minute)

	_, ok := l.Get("a")
	assert.False(t, ok)

	l.Set("a", 1)
	v, ok := l.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	l.Set("a", 2)
	v, _ = l.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, l.Len())
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	l, _ := newTestLRU(2, time.Minute)

	l.Set("a", 1)
	l.Set("b", 2)
	l.Get("a")
	l.Set("c", 3)

	_, ok := l.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = l.Get("a")
	assert.True(t, ok)
	_, ok = l.Get("c")
	assert.True(t, ok)
}

func TestLRUExpiry(t *testing.T) {
	l, c := newTestLRU(4, time.Minute)

	l.Set("a", 1)
	l.Set("b", 2)
	c.t = c.t.Add(30 * time.Second)
	l.Set("c", 3)

	c.t = c.t.Add(45 * time.Second)
	_, ok := l.Get("a")
	assert.False(t, ok)

	assert.Equal(t, 1, l.CleanExpired())
	assert.Equal(t, 1, l.Len())
	_, ok = l.Get("c")
	assert.True(t, ok)
}

func TestLRUDelete(t *testing.T) {
	l, _ := newTestLRU(2, time.Minute)
	l.Set("a", 1)
	l.Delete("a")
	l.Delete("missing")
	assert.Equal(t, 0, l.Len())
}

func TestLRUConcurrentAccess(t *testing.T) {
	l := NewLRU[int](16, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i+j)%32)
				l.Set(key, j)
				l.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, l.Len(), 16)
}
