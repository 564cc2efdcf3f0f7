// Package pagecache holds rendered page bitmaps in a byte-bounded LRU
// cache so a paging UI can revisit nearby pages without re-rasterizing
// them.
package pagecache

import (
	"container/list"
	"image"
	"sync"
)

type entry struct {
	page  int
	img   *image.RGBA
	bytes int64
}

// Cache maps page index to rendered bitmap, evicting least-recently-used
// entries once the tracked pixel bytes exceed capacity. A Cache is
// scoped to one document session; callers clear it when the source or
// render resolution changes.
//
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	order    *list.List // front = most recently used
	entries  map[int]*list.Element
}

// New creates a cache bounded to capacity bytes of bitmap data.
// Non-positive capacities get a minimal 1-byte budget, which caches
// nothing but keeps the invariants intact.
func New(capacity int64) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[int]*list.Element),
	}
}

// Get returns the cached bitmap for page, if present, and marks it
// most recently used. It never triggers a render.
func (c *Cache) Get(page int) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[page]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry).img, true
}

// Put inserts or overwrites the bitmap for page, evicting
// least-recently-used entries until the byte budget is satisfied.
// Bitmaps larger than the entire budget are not cached at all;
// flushing every other entry for an entry that still cannot fit
// helps nobody.
func (c *Cache) Put(page int, img *image.RGBA) {
	if img == nil {
		return
	}
	size := int64(len(img.Pix))
	if size > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[page]; ok {
		ent := elem.Value.(*entry)
		c.used -= ent.bytes
		ent.img = img
		ent.bytes = size
		c.used += size
		c.order.MoveToFront(elem)
	} else {
		c.entries[page] = c.order.PushFront(&entry{page: page, img: img, bytes: size})
		c.used += size
	}

	for c.used > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
}

// Evict removes the entry for page if present.
func (c *Cache) Evict(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[page]; ok {
		c.removeLocked(elem)
	}
}

// EvictAll clears every entry. Called on source change, on
// resolution-invalidating events and on session teardown.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[int]*list.Element)
	c.used = 0
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SizeBytes returns the tracked bitmap bytes currently held.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Capacity returns the configured byte budget.
func (c *Cache) Capacity() int64 {
	return c.capacity
}

func (c *Cache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, ent.page)
	c.used -= ent.bytes
}
