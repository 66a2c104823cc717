package metadata

import (
	"container/list"
	"sync"
)

// DefaultCapacity 缓存默认容量
const DefaultCapacity = 256

// Reader 元数据读取能力
// 由调用方提供，负责把资源标识解析为结构元数据。
// Read 必须是纯函数：对同一资源重复调用返回等价结果。
type Reader interface {
	Read(resource string) (*Metadata, error)
}

// Cache 有界的、按访问排序的元数据缓存
// 命中会把条目移动到最近使用位置；插入超过容量时淘汰最久未使用的条目（LRU）。
//
// 并发语义：并发 miss 可能对同一资源解析多次（Read 是幂等的，结果等价），
// 但访问顺序链表的变更始终在锁内串行执行，不会被破坏。
type Cache struct {
	reader   Reader
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // Front = 最近使用
}

type cacheEntry struct {
	resource string
	meta     *Metadata
}

// Option 缓存配置选项
type Option func(*Cache)

// WithCapacity 设置缓存容量，n <= 0 时使用默认容量
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// NewCache 创建元数据缓存，reader 不可为 nil
func NewCache(reader Reader, opts ...Option) *Cache {
	c := &Cache{
		reader:   reader,
		capacity: DefaultCapacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 获取资源的结构元数据
// 命中时将条目标记为最近使用；未命中时通过 Reader 解析并插入，
// 超出容量则淘汰最久未使用的条目。
func (c *Cache) Get(resource string) (*Metadata, error) {
	c.mu.Lock()
	if el, ok := c.entries[resource]; ok {
		c.order.MoveToFront(el)
		meta := el.Value.(*cacheEntry).meta
		c.mu.Unlock()
		return meta, nil
	}
	c.mu.Unlock()

	// 在锁外解析：并发 miss 允许重复解析同一资源
	meta, err := c.reader.Read(resource)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 双重检查：其他协程可能已经插入
	if el, ok := c.entries[resource]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).meta, nil
	}

	el := c.order.PushFront(&cacheEntry{resource: resource, meta: meta})
	c.entries[resource] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).resource)
	}
	return meta, nil
}

// Contains 判断资源是否已缓存，不改变访问顺序
func (c *Cache) Contains(resource string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[resource]
	return ok
}

// Len 返回当前缓存条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity 返回缓存容量
func (c *Cache) Capacity() int {
	return c.capacity
}

// Clear 原子地清空所有条目
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}
