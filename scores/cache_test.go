package scores

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestPutGet(t *testing.T) {
	c := NewCache(4)

	c.Put("a", []byte(`{"tempo":120}`))

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Get(a) = false, want true")
	}
	if !bytes.Equal(got, []byte(`{"tempo":120}`)) {
		t.Errorf("Get(a) = %q", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}
}

func TestEvictsOldestFirst(t *testing.T) {
	c := NewCache(3)

	for _, id := range []string{"a", "b", "c", "d"} {
		c.Put(id, []byte(id))
	}

	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, id := range []string{"b", "c", "d"} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("Get(%s) = false, want true", id)
		}
	}
}

func TestRePutRefreshesAge(t *testing.T) {
	c := NewCache(2)

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("a", []byte("3")) // refresh: b is now oldest
	c.Put("c", []byte("4")) // evicts b

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as the oldest entry")
	}
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("a should survive after refresh")
	}
	if string(got) != "3" {
		t.Errorf("Get(a) = %q, want updated value %q", got, "3")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestLatest(t *testing.T) {
	c := NewCache(4)

	if _, _, ok := c.Latest(); ok {
		t.Error("Latest on empty cache should report false")
	}

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	id, value, ok := c.Latest()
	if !ok {
		t.Fatal("Latest = false, want true")
	}
	if id != "b" || string(value) != "2" {
		t.Errorf("Latest = (%s, %s), want (b, 2)", id, value)
	}

	// Re-put moves an older id back to most recent.
	c.Put("a", []byte("3"))
	if id, _, _ := c.Latest(); id != "a" {
		t.Errorf("Latest id = %s, want a", id)
	}

	c.Clear()
	if _, _, ok := c.Latest(); ok {
		t.Error("Latest after Clear should report false")
	}
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}

func TestCopiesInAndOut(t *testing.T) {
	c := NewCache(4)

	in := []byte("original")
	c.Put("a", in)
	in[0] = 'X'

	got, _ := c.Get("a")
	if string(got) != "original" {
		t.Errorf("cached value changed via caller's slice: %q", got)
	}

	got[0] = 'Y'
	again, _ := c.Get("a")
	if string(again) != "original" {
		t.Errorf("cached value changed via returned slice: %q", again)
	}
}

func TestCapacityFloor(t *testing.T) {
	c := NewCache(0)

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if _, _, ok := c.Latest(); !ok {
		t.Error("the newest entry must survive eviction")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewCache(8)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("score-%d", i%4)
			for range 100 {
				c.Put(id, []byte(id))
				c.Get(id)
				c.Latest()
			}
		}()
	}
	wg.Wait()

	if c.Len() > 8 {
		t.Errorf("Len = %d, want <= 8", c.Len())
	}
}
