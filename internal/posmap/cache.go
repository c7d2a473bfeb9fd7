package posmap

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one literal of one unit version. Tables built for an older
// version are never returned for a newer one.
type Key struct {
	Path    string
	Start   uint32
	Version int64
}

// Decoded is the cached result of Decode.
type Decoded struct {
	Text  string
	Holes []int
	Table *Table
}

// Cache keeps recently decoded literals.
type Cache struct {
	tables *lru.Cache[Key, *Decoded]
}

const DefaultCacheSize = 4096

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[Key, *Decoded](size)
	if err != nil {
		return nil, fmt.Errorf("position cache: %w", err)
	}
	return &Cache{tables: c}, nil
}

func (c *Cache) Get(key Key) (*Decoded, bool) {
	if c == nil {
		return nil, false
	}
	return c.tables.Get(key)
}

// Decode returns the cached decoding of the literal starting at key.Start,
// decoding and storing it on a miss. A nil Cache always decodes.
func (c *Cache) Decode(key Key, raw string, holes []HoleRange) *Decoded {
	if d, ok := c.Get(key); ok {
		return d
	}
	text, offsets, table := Decode(key.Start, raw, holes)
	d := &Decoded{Text: text, Holes: offsets, Table: table}
	if c != nil {
		c.tables.Add(key, d)
	}
	return d
}

// Purge drops every table of path with a version older than keep.
func (c *Cache) Purge(path string, keep int64) {
	if c == nil {
		return
	}
	for _, k := range c.tables.Keys() {
		if k.Path == path && k.Version < keep {
			c.tables.Remove(k)
		}
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.tables.Len()
}
