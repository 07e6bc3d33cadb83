package cache

import (
	"fmt"
	"sync"
	"testing"
)

func newTestLRU(t *testing.T, capacity int) *LRU[string, int] {
	t.Helper()
	c, err := NewLRU[string, int](capacity)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	return c
}

func Test_LRU_RejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, -1} {
		if _, err := NewLRU[string, int](capacity); err == nil {
			t.Errorf("capacity %d: want error, got nil", capacity)
		}
	}
}

func Test_LRU_GetMissAndHit(t *testing.T) {
	t.Parallel()
	c := newTestLRU(t, 4)

	if _, ok := c.Get("absent"); ok {
		t.Error("want miss for absent key")
	}

	c.Put("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("want hit with 1, got %v ok=%v", v, ok)
	}
}

func Test_LRU_CapacityNeverExceeded(t *testing.T) {
	t.Parallel()
	c := newTestLRU(t, 3)

	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
		if got := c.Len(); got > 3 {
			t.Fatalf("after put %d: size %d exceeds capacity 3", i, got)
		}
	}
	if got := c.Len(); got != 3 {
		t.Errorf("want 3 entries, got %d", got)
	}
}

func Test_LRU_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	c := newTestLRU(t, 3)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("want hit for a")
	}

	c.Put("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be present", k)
		}
	}
}

func Test_LRU_CapacityPlusOneDistinctPuts(t *testing.T) {
	t.Parallel()
	const capacity = 5
	c := newTestLRU(t, capacity)

	for i := 0; i <= capacity; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}

	if got := c.Len(); got != capacity {
		t.Errorf("want exactly %d entries, got %d", capacity, got)
	}
	// The first-inserted, never re-touched key is the one evicted.
	if _, ok := c.Get("k0"); ok {
		t.Error("k0 should have been evicted")
	}
	for i := 1; i <= capacity; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("k%d should still be present", i)
		}
	}
}

func Test_LRU_PutExistingUpdatesWithoutDuplicate(t *testing.T) {
	t.Parallel()
	c := newTestLRU(t, 2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10) // update counts as a use; "b" is now least recent
	c.Put("c", 3)

	if got := c.Len(); got != 2 {
		t.Fatalf("want 2 entries, got %d", got)
	}
	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Errorf("want a=10 present, got %v ok=%v", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted after a was re-put")
	}
}

func Test_LRU_Clear(t *testing.T) {
	t.Parallel()
	c := newTestLRU(t, 4)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()

	if got := c.Len(); got != 0 {
		t.Errorf("want empty after clear, got %d", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("want miss after clear")
	}
	// Cache remains usable after Clear.
	c.Put("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("want c=3 after clear, got %v ok=%v", v, ok)
	}
}

func Test_LRU_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := newTestLRU(t, 50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%60)
				c.Put(key, g*1000+i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if got := c.Len(); got > 50 {
		t.Errorf("size %d exceeds capacity 50 after concurrent load", got)
	}
}
