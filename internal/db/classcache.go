package db

import (
	"container/list"
	"database/sql"
	"sync"
)

const classCacheSize = 1024

type classCacheEntry struct {
	key   string
	value int64
}

// classCache is a small LRU of class name to row id, one per *sql.DB.
type classCache struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[string]*list.Element
}

func newClassCache(max int) *classCache {
	return &classCache{
		max:   max,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (c *classCache) Get(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(classCacheEntry).value, true
	}
	return 0, false
}

func (c *classCache) Set(key string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = classCacheEntry{key: key, value: value}
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(classCacheEntry{key: key, value: value})
	c.items[key] = el

	if c.ll.Len() > c.max {
		last := c.ll.Back()
		if last == nil {
			return
		}
		c.ll.Remove(last)
		delete(c.items, last.Value.(classCacheEntry).key)
	}
}

var dbClassCaches sync.Map // map[*sql.DB]*classCache

func getClassCache(db *sql.DB) *classCache {
	if db == nil {
		return nil
	}
	if existing, ok := dbClassCaches.Load(db); ok {
		return existing.(*classCache)
	}
	cache := newClassCache(classCacheSize)
	actual, _ := dbClassCaches.LoadOrStore(db, cache)
	return actual.(*classCache)
}

// lookupClassID resolves a class name through the cache.
func lookupClassID(db *sql.DB, name string) (int64, error) {
	cache := getClassCache(db)
	if id, ok := cache.Get(name); ok {
		return id, nil
	}
	var id int64
	if err := db.QueryRow(`SELECT id FROM classes WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, err
	}
	cache.Set(name, id)
	return id, nil
}
