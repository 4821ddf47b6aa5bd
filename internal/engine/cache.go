package engine

import (
	"container/list"
	"sync"
)

// CachedTicket is a rendered RGBA ticket buffer at the template's native
// pixel dimensions. Tickets are never cached pre-scaled to a cell size.
type CachedTicket struct {
	Pix    []byte
	Width  int
	Height int
}

// ticketCache maps canonical record keys to rendered tickets. The key
// deliberately excludes every sheet-layout parameter: a ticket's pixels
// never depend on where it lands on the sheet. Eviction is LRU when a
// capacity is set, otherwise unbounded.
type ticketCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
	capacity int        // 0 means unbounded
}

type cacheEntry struct {
	key    string
	ticket *CachedTicket
}

func newTicketCache() *ticketCache {
	return &ticketCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *ticketCache) get(key string) (*CachedTicket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).ticket, true
}

func (c *ticketCache) put(key string, ticket *CachedTicket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).ticket = ticket
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, ticket: ticket})

	if c.capacity > 0 {
		for c.order.Len() > c.capacity {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

func (c *ticketCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *ticketCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *ticketCache) setCapacity(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = n
	if n > 0 {
		for c.order.Len() > n {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}
