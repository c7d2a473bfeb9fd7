package posmap

import "testing"

func TestDecodePlainTextIsIdentity(t *testing.T) {
	raw := "query { hello }"
	text, holes, tab := Decode(100, raw, nil)
	if text != raw || len(holes) != 0 {
		t.Fatalf("Decode = %q %v", text, holes)
	}
	for i := 0; i <= len(raw); i++ {
		emb, ok := tab.ToEmbedded(uint32(100 + i))
		if !ok || emb != i {
			t.Fatalf("ToEmbedded(%d) = %d,%v", 100+i, emb, ok)
		}
		host, ok := tab.ToHost(i)
		if !ok || host != uint32(100+i) {
			t.Fatalf("ToHost(%d) = %d,%v", i, host, ok)
		}
	}
	if _, ok := tab.ToEmbedded(99); ok {
		t.Fatalf("offset before literal must not map")
	}
	if _, ok := tab.ToEmbedded(uint32(100 + len(raw) + 1)); ok {
		t.Fatalf("offset after literal must not map")
	}
}

func TestDecodeEscapesShiftOffsets(t *testing.T) {
	// raw: a\`b\\c  -> decoded: a`b\c
	raw := "a\\`b\\\\c"
	text, _, tab := Decode(0, raw, nil)
	if text != "a`b\\c" {
		t.Fatalf("decoded = %q", text)
	}
	tests := []struct {
		host uint32
		emb  int
	}{
		{0, 0}, // a
		{1, 1}, // start of \`
		{3, 2}, // b
		{4, 3}, // start of \\
		{6, 4}, // c
		{7, 5}, // end
	}
	for _, tt := range tests {
		got, ok := tab.ToEmbedded(tt.host)
		if !ok || got != tt.emb {
			t.Fatalf("ToEmbedded(%d) = %d,%v want %d", tt.host, got, ok, tt.emb)
		}
		back, ok := tab.ToHost(tt.emb)
		if !ok || back != tt.host {
			t.Fatalf("ToHost(%d) = %d,%v want %d", tt.emb, back, ok, tt.host)
		}
	}
}

func TestDecodeUnicodeEscapes(t *testing.T) {
	text, _, _ := Decode(0, `é\u{1F600}\uD83D\uDE00\x41\q`, nil)
	if text != "é😀😀Aq" {
		t.Fatalf("decoded = %q", text)
	}
	text, _, _ = Decode(0, "a\\\nb", nil)
	if text != "ab" {
		t.Fatalf("line continuation not removed: %q", text)
	}
}

func TestDecodeHolesCollapse(t *testing.T) {
	raw := "{ ...A }\n${A}\n"
	text, holes, tab := Decode(10, raw, []HoleRange{{Start: 9, End: 13}})
	if text != "{ ...A }\n\n" {
		t.Fatalf("decoded = %q", text)
	}
	if len(holes) != 1 || holes[0] != 9 {
		t.Fatalf("holes = %v", holes)
	}
	if _, ok := tab.ToEmbedded(10 + 11); ok {
		t.Fatalf("offset inside a hole must not map")
	}
	if emb, ok := tab.ToEmbedded(10 + 9); !ok || emb != 9 {
		t.Fatalf("offset at hole start = %d,%v", emb, ok)
	}
	if emb, ok := tab.ToEmbedded(10 + 13); !ok || emb != 9 {
		t.Fatalf("offset after hole = %d,%v", emb, ok)
	}
	if host, ok := tab.ToHost(9); !ok || host != 10+13 {
		t.Fatalf("ToHost after hole = %d,%v", host, ok)
	}
	if _, ok := tab.ToEmbedded(10 + 11); ok {
		t.Fatalf("offset inside a hole must not map")
	}
}

func TestCacheKeyedByVersion(t *testing.T) {
	c, err := NewCache(8)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	v1 := c.Decode(Key{Path: "a.ts", Start: 5, Version: 1}, "x", nil)
	if again := c.Decode(Key{Path: "a.ts", Start: 5, Version: 1}, "x", nil); again != v1 {
		t.Fatalf("same version must hit the cache")
	}
	v2 := c.Decode(Key{Path: "a.ts", Start: 5, Version: 2}, "y", nil)
	if v2 == v1 || v2.Text != "y" {
		t.Fatalf("table of version 1 reused for version 2")
	}
	c.Purge("a.ts", 2)
	if _, ok := c.Get(Key{Path: "a.ts", Start: 5, Version: 1}); ok {
		t.Fatalf("old version not purged")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
	var nilCache *Cache
	if d := nilCache.Decode(Key{}, "z", nil); d.Text != "z" {
		t.Fatalf("nil cache must still decode")
	}
}
