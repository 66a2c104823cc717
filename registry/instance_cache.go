package registry

import (
	"sync"
)

type destroyer struct {
	name string
	fn   func() error
}

// instanceCache 单例存储与创建状态
// 持有容器内唯一实例表、"已创建过"集合和按标识划分的创建锁。
// 锁按标识独立：不相关标识的并发创建互不争用。
type instanceCache struct {
	mu             sync.Mutex
	singletons     map[string]any
	locks          map[string]*sync.Mutex
	alreadyCreated map[string]struct{}
	destroyers     []destroyer
}

func newInstanceCache() *instanceCache {
	return &instanceCache{
		singletons:     make(map[string]any),
		locks:          make(map[string]*sync.Mutex),
		alreadyCreated: make(map[string]struct{}),
	}
}

// get 返回已发布的单例
func (c *instanceCache) get(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.singletons[name]
	return inst, ok
}

// creationLock 返回标识专属的创建锁
func (c *instanceCache) creationLock(name string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[name] = lock
	}
	return lock
}

// storeSingleton 发布构建完成的单例并记入已创建集合
// 失败的尝试不会走到这里：半初始化对象绝不发布。
func (c *instanceCache) storeSingleton(name string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = instance
	c.alreadyCreated[name] = struct{}{}
}

// wasCreated 标识的单例是否曾经完整产出过
func (c *instanceCache) wasCreated(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.alreadyCreated[name]
	return ok
}

// addDestroyer 登记销毁回调，容器重置时按创建逆序调用
func (c *instanceCache) addDestroyer(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyers = append(c.destroyers, destroyer{name: name, fn: fn})
}

// drain 取出全部状态并清空，返回按创建逆序排列的销毁回调
func (c *instanceCache) drain() []destroyer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]destroyer, len(c.destroyers))
	for i, d := range c.destroyers {
		out[len(c.destroyers)-1-i] = d
	}

	c.singletons = make(map[string]any)
	c.locks = make(map[string]*sync.Mutex)
	c.alreadyCreated = make(map[string]struct{})
	c.destroyers = nil
	return out
}
