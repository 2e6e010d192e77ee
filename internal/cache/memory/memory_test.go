package memory

import (
	"context"
	"testing"
	"time"
)

func TestSetGet_CopiesValue(t *testing.T) {
	c := New(8, time.Hour)
	ctx := context.Background()

	v := []byte("abc")
	if err := c.Set(ctx, "k", v, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v[0] = 'x'

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "abc" {
		t.Fatalf("Get = %q ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Fatal("unexpected hit")
	}
}

func TestGet_PerEntryTTL(t *testing.T) {
	c := New(8, time.Hour)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), time.Second)
	_ = c.Set(ctx, "long", []byte("v"), time.Minute)

	now = now.Add(2 * time.Second)
	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Fatal("short entry should have expired")
	}
	if _, ok, _ := c.Get(ctx, "long"); !ok {
		t.Fatal("long entry should still be cached")
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d want 1 after expired entry removal", c.Len())
	}
}

func TestBoundedSize_EvictsLeastRecent(t *testing.T) {
	c := New(2, time.Hour)
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatal("a should survive")
	}
}

func TestPurgePrefix(t *testing.T) {
	c := New(8, time.Hour)
	ctx := context.Background()
	for _, k := range []string{"nearby:v1:a", "nearby:v1:b", "other"} {
		_ = c.Set(ctx, k, []byte("v"), 0)
	}
	n, err := c.PurgePrefix(ctx, "nearby:v1:")
	if err != nil || n != 2 {
		t.Fatalf("PurgePrefix n=%d err=%v", n, err)
	}
	if _, ok, _ := c.Get(ctx, "other"); !ok {
		t.Fatal("non-matching key removed")
	}
}
