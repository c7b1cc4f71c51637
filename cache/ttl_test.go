package cache

import (
	"testing"
	"time"
)

func TestTTL(t *testing.T) {
	c := NewTTL[int]()

	c.Set("live", 1, time.Hour)
	c.Set("dead", 2, -time.Second)

	if v, ok := c.Get("live"); !ok || v != 1 {
		t.Errorf("Get(live) = %v, %v; want 1, true", v, ok)
	}
	if v, ok := c.Get("dead"); ok {
		t.Errorf("Get(dead) = %v, %v; want expired", v, ok)
	}
	if v, ok := c.Get("missing"); ok || v != 0 {
		t.Errorf("Get(missing) = %v, %v; want 0, false", v, ok)
	}
}

func TestTTLGetOrSet(t *testing.T) {
	c := NewTTL[*int]()

	created := 0
	create := func() *int {
		created++
		v := created
		return &v
	}

	a := c.GetOrSet("k", time.Hour, create)
	b := c.GetOrSet("k", time.Hour, create)
	if a != b || created != 1 {
		t.Errorf("want one value created and reused, created %d", created)
	}

	c.Set("k", a, -time.Second)
	if got := c.GetOrSet("k", time.Hour, create); got == a || created != 2 {
		t.Errorf("want expired value replaced, created %d", created)
	}
}

func TestTTLClean(t *testing.T) {
	c := NewTTL[string]()

	c.Set("a", "x", time.Hour)
	c.Set("b", "y", -time.Second)
	c.Set("c", "z", -time.Second)

	c.Clean()

	if n := c.Len(); n != 1 {
		t.Errorf("want 1 entry after Clean, got %d", n)
	}
}
