package ringbuf

import "testing"

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(0) did not panic")
		}
	}()
	New[string, int](0)
}

func TestEvictionIsFIFO(t *testing.T) {
	m := New[int, string](3)
	m.Put(1, "a")
	m.Put(2, "b")
	m.Put(3, "c")
	m.Put(4, "d") // evicts 1

	if _, ok := m.Get(1); ok {
		t.Error("Get(1) found after eviction, want not found")
	}
	for k, want := range map[int]string{2: "b", 3: "c", 4: "d"} {
		got, ok := m.Get(k)
		if !ok || got != want {
			t.Errorf("Get(%d) = %q, %v, want %q, true", k, got, ok, want)
		}
	}
}

func TestPutExistingKeyDoesNotEvict(t *testing.T) {
	m := New[int, string](2)
	m.Put(1, "a")
	m.Put(2, "b")
	m.Put(1, "a2") // overwrite, should not evict 2
	if _, ok := m.Get(2); !ok {
		t.Error("Get(2) not found, want found after overwriting 1")
	}
	got, _ := m.Get(1)
	if got != "a2" {
		t.Errorf("Get(1) = %q, want %q", got, "a2")
	}
}

func TestDeleteAndLen(t *testing.T) {
	m := New[int, string](4)
	m.Put(1, "a")
	m.Put(2, "b")
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	m.Delete(1)
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	if _, ok := m.Get(1); ok {
		t.Error("Get(1) found after Delete, want not found")
	}
}

// property test mirroring P1: for N > 0 and N+1 inserted keys, the first is
// gone and the rest survive.
func TestBoundedQueueProperty(t *testing.T) {
	for _, n := range []int{1, 2, 5, 16} {
		m := New[int, int](n)
		for k := 1; k <= n+1; k++ {
			m.Put(k, k*10)
		}
		if _, ok := m.Get(1); ok {
			t.Errorf("capacity %d: Get(1) found, want evicted", n)
		}
		for k := 2; k <= n+1; k++ {
			got, ok := m.Get(k)
			if !ok || got != k*10 {
				t.Errorf("capacity %d: Get(%d) = %d, %v, want %d, true", n, k, got, ok, k*10)
			}
		}
	}
}
