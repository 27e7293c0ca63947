package pool

import (
	"sync"
	"testing"
)

type item struct {
	id   int
	name string
}

func TestAllocReturnsZeroedSlot(t *testing.T) {
	p := New[item](4)

	h, it := p.Alloc()
	if !h.IsValid() {
		t.Fatal("Alloc() returned invalid handle")
	}
	if it.id != 0 || it.name != "" {
		t.Errorf("Alloc() slot = %+v, want zero value", *it)
	}
	it.id = 7
	p.Free(h)

	h2, it2 := p.Alloc()
	if it2.id != 0 {
		t.Errorf("reused slot id = %d, want 0", it2.id)
	}
	if h2 == h {
		t.Error("reused slot produced the same handle; generation was not bumped")
	}
}

func TestHandleStability(t *testing.T) {
	const n = 100
	p := New[item](n)

	handles := make([]Handle[item], n)
	for i := range handles {
		h, it := p.Alloc()
		it.id = i
		it.name = "item"
		handles[i] = h
	}

	p.Free(handles[49])

	for i, h := range handles {
		if i == 49 {
			if p.IsAlive(h) {
				t.Error("freed handle still alive")
			}
			continue
		}
		got := p.Get(h)
		if got.id != i {
			t.Errorf("Get(handles[%d]).id = %d, want %d", i, got.id, i)
		}
	}
	if p.Len() != n-1 {
		t.Errorf("Len() = %d, want %d", p.Len(), n-1)
	}
}

func TestSlotPointerStableAcrossAllocs(t *testing.T) {
	p := New[item](8)
	h, first := p.Alloc()
	first.id = 42

	for i := 0; i < 7; i++ {
		p.Alloc()
	}
	if p.Get(h) != first {
		t.Error("slot pointer moved after further allocations")
	}
}

func TestExhaustionPanics(t *testing.T) {
	p := New[item](2)
	p.Alloc()
	p.Alloc()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Alloc() on full pool did not panic")
		}
	}()
	p.Alloc()
}

func TestInvalidHandlePanics(t *testing.T) {
	tests := []struct {
		name string
		get  func(p *Pool[item], live Handle[item])
	}{
		{"zero", func(p *Pool[item], _ Handle[item]) { p.Get(Invalid) }},
		{"stale", func(p *Pool[item], live Handle[item]) {
			p.Free(live)
			p.Get(live)
		}},
		{"out of range", func(p *Pool[item], _ Handle[item]) { p.Get(makeHandle[item](1000, 0)) }},
		{"double free", func(p *Pool[item], live Handle[item]) {
			p.Free(live)
			p.Free(live)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New[item](4)
			h, _ := p.Alloc()
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s: expected panic", tt.name)
				}
			}()
			tt.get(p, h)
		})
	}
}

func TestEachVisitsLiveSlots(t *testing.T) {
	p := New[item](8)
	var hs []Handle[item]
	for i := 0; i < 5; i++ {
		h, it := p.Alloc()
		it.id = i
		hs = append(hs, h)
	}
	p.Free(hs[1])
	p.Free(hs[3])

	var ids []int
	p.Each(func(h Handle[item], it *item) {
		ids = append(ids, it.id)
	})

	want := []int{0, 2, 4}
	if len(ids) != len(want) {
		t.Fatalf("Each visited %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Each()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestHandleIndex(t *testing.T) {
	var zero Handle[item]
	if zero.Index() != -1 {
		t.Errorf("zero.Index() = %d, want -1", zero.Index())
	}
	h := makeHandle[item](5, 3)
	if h.Index() != 5 {
		t.Errorf("Index() = %d, want 5", h.Index())
	}
	if h.generation() != 3 {
		t.Errorf("generation() = %d, want 3", h.generation())
	}
}

func TestConcurrentAllocFree(t *testing.T) {
	p := New[item](64)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h, it := p.Alloc()
				it.id = i
				p.Free(h)
			}
		}()
	}
	wg.Wait()

	if p.Len() != 0 {
		t.Errorf("Len() = %d after balanced alloc/free, want 0", p.Len())
	}
}
