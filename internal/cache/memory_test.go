package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetGetString(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.SetString(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.GetString(ctx, "k")
	if err != nil || !ok || got != "v" {
		t.Fatalf("expected v/true, got %q/%v (err=%v)", got, ok, err)
	}
}

func TestMemoryCache_ExpiresAfterTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.SetString(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.GetString(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected key to have expired")
	}
}

func TestMemoryCache_SetGetTime(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	if err := c.SetTime(ctx, "wm", now, 0); err != nil {
		t.Fatalf("set time: %v", err)
	}
	got, ok, err := c.GetTime(ctx, "wm")
	if err != nil || !ok {
		t.Fatalf("get time: ok=%v err=%v", ok, err)
	}
	if !got.Equal(now) {
		t.Fatalf("expected %v, got %v", now, got)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	c.SetString(ctx, "k", "v", 0)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, _ := c.GetString(ctx, "k")
	if ok {
		t.Fatal("expected key to be gone after delete")
	}
}
