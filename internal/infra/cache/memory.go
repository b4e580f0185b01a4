package cache

import (
	"container/list"
	"context"
	"sync"

	"feedsync/internal/models"
)

type memEntry struct {
	key   string
	value any
}

// MemoryCache keeps records for the life of the process. With maxEntries > 0
// the least recently used record is evicted once the bound is reached.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front = most recently used
	items      map[string]*list.Element
}

func NewMemory(maxEntries int) *MemoryCache {
	return &MemoryCache{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (m *MemoryCache) GetContent(ctx context.Context, id int64) (models.ContentItem, bool, error) {
	v, ok := m.get(Key(KindContent, id))
	if !ok {
		return models.ContentItem{}, false, nil
	}
	return v.(models.ContentItem).Clone(), true, nil
}

func (m *MemoryCache) PutContent(ctx context.Context, c models.ContentItem) error {
	m.put(Key(KindContent, c.ID), c.Clone())
	return nil
}

func (m *MemoryCache) GetIdentity(ctx context.Context, id int64) (models.Identity, bool, error) {
	v, ok := m.get(Key(KindIdentity, id))
	if !ok {
		return models.Identity{}, false, nil
	}
	return v.(models.Identity), true, nil
}

func (m *MemoryCache) PutIdentity(ctx context.Context, u models.Identity) error {
	m.put(Key(KindIdentity, u.ID), u)
	return nil
}

func (m *MemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	m.items = make(map[string]*list.Element)
	return nil
}

// Len reports the number of cached records of both kinds.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *MemoryCache) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*memEntry).value, true
}

func (m *MemoryCache) put(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		el.Value.(*memEntry).value = value
		m.order.MoveToFront(el)
		return
	}

	m.items[key] = m.order.PushFront(&memEntry{key: key, value: value})
	if m.maxEntries > 0 && m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memEntry).key)
	}
}
