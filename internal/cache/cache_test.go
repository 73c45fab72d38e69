package cache

import (
	"bytes"
	"testing"
)

func TestCacheBasicOperations(t *testing.T) {
	c := NewCache[string, int]()

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss on empty cache")
	}

	c.Set("a", 1)
	if val, ok := c.Get("a"); !ok || val != 1 {
		t.Errorf("Expected 1, got %d (%v)", val, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Expected miss after delete")
	}

	c.Set("b", 2)
	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("Expected miss after clear")
	}
}

func TestCacheSetTo(t *testing.T) {
	c := NewCache[string, string]()
	c.Set("stale", "old")

	c.SetTo(map[string]string{"fresh": "new"})

	if _, ok := c.Get("stale"); ok {
		t.Error("Expected SetTo to drop prior entries")
	}
	if val, ok := c.Get("fresh"); !ok || val != "new" {
		t.Errorf("Expected new entry, got %q (%v)", val, ok)
	}
}

func TestRenderedPostCacheKeyedByTheme(t *testing.T) {
	ClearRenderedPostCache()

	SetRenderedPost("hash1", "gruvbox", []byte("<p>dark</p>"))

	if _, found := GetRenderedPost("hash1", "catppuccin-latte"); found {
		t.Error("Expected a different syntax theme to miss")
	}

	cached, found := GetRenderedPost("hash1", "gruvbox")
	if !found || !bytes.Equal(cached.HTML, []byte("<p>dark</p>")) {
		t.Errorf("Expected cached rendering, got %v (%v)", cached, found)
	}
}
