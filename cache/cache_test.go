package cache

import (
	"errors"
	"sync"
	"testing"
)

func TestNewSharded(t *testing.T) {
	c := NewSharded[string, int](0, StringHasher)
	if c.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", c.Capacity(), DefaultCapacity)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestGetSet(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)
	c.Set("key1", 42)

	if v, ok := c.Get("key1"); !ok || v != 42 {
		t.Errorf("Get(key1) = %d, %v; want 42, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) reported a hit")
	}
}

func TestGetOrCreate(t *testing.T) {
	c := NewSharded[uint64, string](10, Uint64Hasher)
	calls := 0
	create := func() (string, error) {
		calls++
		return "pipeline", nil
	}

	for range 3 {
		v, err := c.GetOrCreate(7, create)
		if err != nil || v != "pipeline" {
			t.Fatalf("GetOrCreate() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("Stats() hits=%d misses=%d, want 2, 1", st.Hits, st.Misses)
	}
}

func TestGetOrCreateError(t *testing.T) {
	c := NewSharded[uint64, int](10, Uint64Hasher)
	boom := errors.New("boom")

	if _, err := c.GetOrCreate(1, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("GetOrCreate() error = %v, want %v", err, boom)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed create, want 0", c.Len())
	}
}

// sameShard returns n keys that all hash to the shard of key 0.
func sameShard(n int) []uint64 {
	var keys []uint64
	want := Uint64Hasher(0) & shardMask
	for k := uint64(0); len(keys) < n; k++ {
		if Uint64Hasher(k)&shardMask == want {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestEvictionOrder(t *testing.T) {
	var evicted []uint64
	c := NewSharded[uint64, uint64](2, Uint64Hasher, WithEvict(func(k, _ uint64) {
		evicted = append(evicted, k)
	}))
	keys := sameShard(3)

	c.Set(keys[0], 0)
	c.Set(keys[1], 1)
	c.Get(keys[0]) // keys[1] becomes least recently used
	c.Set(keys[2], 2)

	if len(evicted) != 1 || evicted[0] != keys[1] {
		t.Fatalf("evicted = %v, want [%d]", evicted, keys[1])
	}
	if _, ok := c.Get(keys[0]); !ok {
		t.Error("recently used entry was evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestDeleteAndClearEvict(t *testing.T) {
	var evicted int
	c := NewSharded[string, int](10, StringHasher, WithEvict(func(string, int) { evicted++ }))
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	c.Clear()

	if evicted != 3 {
		t.Errorf("evict callback ran %d times, want 3", evicted)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
}

func TestDeleteFunc(t *testing.T) {
	c := NewSharded[uint64, int](10, Uint64Hasher)
	for k := uint64(0); k < 20; k++ {
		c.Set(k, int(k))
	}

	n := c.DeleteFunc(func(k uint64) bool { return k%2 == 0 })
	if n != 10 {
		t.Errorf("DeleteFunc() = %d, want 10", n)
	}
	if _, ok := c.Get(4); ok {
		t.Error("even key survived DeleteFunc")
	}
	if _, ok := c.Get(5); !ok {
		t.Error("odd key removed by DeleteFunc")
	}
}

func TestStats(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)
	if c.Stats().HitRate() != 0 {
		t.Error("HitRate() before lookups should be 0")
	}
	c.Set("k", 1)
	c.Get("k")
	c.Get("missing")

	if got := c.Stats().HitRate(); got != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", got)
	}
	c.ResetStats()
	if st := c.Stats(); st.Hits != 0 || st.Misses != 0 || st.Len != 1 {
		t.Errorf("Stats() after reset = %+v", st)
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	c := NewSharded[uint64, uint64](100, Uint64Hasher)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		built = map[uint64]int{}
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := uint64(0); k < 50; k++ {
				_, _ = c.GetOrCreate(k, func() (uint64, error) {
					mu.Lock()
					built[k]++
					mu.Unlock()
					return k, nil
				})
			}
		}()
	}
	wg.Wait()

	for k, n := range built {
		if n != 1 {
			t.Errorf("key %d built %d times, want 1", k, n)
		}
	}
	if c.Len() != 50 {
		t.Errorf("Len() = %d, want 50", c.Len())
	}
}

func TestListOperations(t *testing.T) {
	var l list[int, int]
	if l.back() != nil {
		t.Fatal("back() of empty list should be nil")
	}
	a, b, c := &node[int, int]{key: 1}, &node[int, int]{key: 2}, &node[int, int]{key: 3}
	l.pushFront(a)
	l.pushFront(b)
	l.pushFront(c) // c b a

	l.moveToFront(a) // a c b
	if l.back() != b {
		t.Errorf("back() = %d, want 2", l.back().key)
	}
	l.remove(b)
	l.remove(c)
	if l.len != 1 || l.head != a || l.tail != a {
		t.Errorf("list after removals: len=%d", l.len)
	}
}
