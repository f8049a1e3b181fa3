package cache

import (
	"errors"
	"testing"
)

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := New[string, int](2, WithEvict(func(k string, _ int) { evicted = append(evicted, k) }))

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if got := c.Keys(); len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Errorf("Keys = %v, want [c a]", got)
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[int, string](0)
	calls := 0
	create := func() (string, error) {
		calls++
		return "v", nil
	}

	for range 3 {
		v, err := c.GetOrCreate(1, create)
		if err != nil || v != "v" {
			t.Fatalf("GetOrCreate = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats = %+v, want 2 hits 1 miss", s)
	}
}

func TestCacheGetOrCreateError(t *testing.T) {
	c := New[int, string](0)
	boom := errors.New("boom")
	if _, err := c.GetOrCreate(1, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after failed create, want 0", c.Len())
	}
}

func TestCacheDeleteAndClearNotify(t *testing.T) {
	var evicted []int
	c := New[int, int](0, WithEvict(func(_ int, v int) { evicted = append(evicted, v) }))
	c.Set(1, 10)
	c.Set(2, 20)
	c.Set(3, 30)

	if !c.Delete(2) {
		t.Fatal("Delete(2) = false")
	}
	if c.Delete(2) {
		t.Error("second Delete(2) = true")
	}
	c.Clear()

	if len(evicted) != 3 {
		t.Fatalf("evicted = %v, want 3 values", evicted)
	}
	if evicted[0] != 20 {
		t.Errorf("first eviction = %d, want 20", evicted[0])
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear", c.Len())
	}
}

func TestCacheSetReplaces(t *testing.T) {
	var evicted []int
	c := New[string, int](4, WithEvict(func(_ string, v int) { evicted = append(evicted, v) }))
	c.Set("k", 1)
	c.Set("k", 2)
	if v, _ := c.Get("k"); v != 2 {
		t.Errorf("Get = %d, want 2", v)
	}
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Errorf("evicted = %v, want [1]", evicted)
	}
}
