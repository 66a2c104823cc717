package registry

import (
	"reflect"
	"sort"
	"sync"

	"github.com/gocrud/ioc/definition"
)

// MergePostProcessor 合并后钩子
// 在任何实例存在之前收到合并定义与解析出的目标类型，可以改写定义字段
// （例如注入默认属性值）。对每个标识在一个容器代内只运行一次：
// 原型的重复实例化不会重跑，需要按实例执行的逻辑应使用后续钩子。
type MergePostProcessor interface {
	PostProcessMergedDefinition(def *definition.MergedDefinition, typ reflect.Type) error
}

// InstantiationPostProcessor 原始实例化后钩子
// 收到刚构造、尚未填充属性的实例，可以包装或替换它（例如生成代理）。
// 返回替换实例后，后续所有步骤都作用于替换品。
type InstantiationPostProcessor interface {
	PostProcessAfterInstantiation(name string, instance any) (any, error)
}

// InitializationPostProcessor 初始化前后钩子
// Before 在属性填充之后、生命周期初始化方法之前运行；
// After 在完全初始化之后运行，是最终返回对象最后一次可被替换的机会。
type InitializationPostProcessor interface {
	PostProcessBeforeInitialization(name string, instance any) (any, error)
	PostProcessAfterInitialization(name string, instance any) (any, error)
}

// Ordered 钩子可实现此接口声明顺序值，小者先行
// 未实现时顺序值为 0，相同顺序按注册先后
type Ordered interface {
	Order() int
}

type hookEntry[T any] struct {
	hook  T
	order int
	seq   int
}

func insertSorted[T any](entries []hookEntry[T], hook T, seq int) []hookEntry[T] {
	order := 0
	if o, ok := any(hook).(Ordered); ok {
		order = o.Order()
	}
	entries = append(entries, hookEntry[T]{hook: hook, order: order, seq: seq})
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

// pipeline 四个生命周期扩展点的有序钩子链
type pipeline struct {
	mu      sync.RWMutex
	nextSeq int

	merge          []hookEntry[MergePostProcessor]
	instantiation  []hookEntry[InstantiationPostProcessor]
	initialization []hookEntry[InitializationPostProcessor]

	// 合并钩子的"每标识每代一次"跟踪
	mergeMu    sync.Mutex
	mergeLocks map[string]*sync.Mutex
	mergeDone  map[string]struct{}
}

func newPipeline() *pipeline {
	return &pipeline{
		mergeLocks: make(map[string]*sync.Mutex),
		mergeDone:  make(map[string]struct{}),
	}
}

func (p *pipeline) addMerge(h MergePostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.merge = insertSorted(p.merge, h, p.nextSeq)
	p.nextSeq++
}

func (p *pipeline) addInstantiation(h InstantiationPostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instantiation = insertSorted(p.instantiation, h, p.nextSeq)
	p.nextSeq++
}

func (p *pipeline) addInitialization(h InitializationPostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialization = insertSorted(p.initialization, h, p.nextSeq)
	p.nextSeq++
}

// applyMerge 运行合并后钩子
// 成功后标记该标识已处理，本代内不再重跑；失败不标记，下次查找重试。
func (p *pipeline) applyMerge(name string, def *definition.MergedDefinition, typ reflect.Type) error {
	p.mergeMu.Lock()
	if _, done := p.mergeDone[name]; done {
		p.mergeMu.Unlock()
		return nil
	}
	lock, ok := p.mergeLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		p.mergeLocks[name] = lock
	}
	p.mergeMu.Unlock()

	// 每标识独立的锁：钩子里解析其他组件不会互相阻塞
	lock.Lock()
	defer lock.Unlock()

	p.mergeMu.Lock()
	_, done := p.mergeDone[name]
	p.mergeMu.Unlock()
	if done {
		return nil
	}

	p.mu.RLock()
	hooks := make([]hookEntry[MergePostProcessor], len(p.merge))
	copy(hooks, p.merge)
	p.mu.RUnlock()

	for _, e := range hooks {
		if err := e.hook.PostProcessMergedDefinition(def, typ); err != nil {
			return err
		}
	}

	p.mergeMu.Lock()
	p.mergeDone[name] = struct{}{}
	p.mergeMu.Unlock()
	return nil
}

func (p *pipeline) applyAfterInstantiation(name string, instance any) (any, error) {
	p.mu.RLock()
	hooks := make([]hookEntry[InstantiationPostProcessor], len(p.instantiation))
	copy(hooks, p.instantiation)
	p.mu.RUnlock()

	for _, e := range hooks {
		next, err := e.hook.PostProcessAfterInstantiation(name, instance)
		if err != nil {
			return nil, err
		}
		if next != nil {
			instance = next
		}
	}
	return instance, nil
}

func (p *pipeline) applyBeforeInitialization(name string, instance any) (any, error) {
	p.mu.RLock()
	hooks := make([]hookEntry[InitializationPostProcessor], len(p.initialization))
	copy(hooks, p.initialization)
	p.mu.RUnlock()

	for _, e := range hooks {
		next, err := e.hook.PostProcessBeforeInitialization(name, instance)
		if err != nil {
			return nil, err
		}
		if next != nil {
			instance = next
		}
	}
	return instance, nil
}

func (p *pipeline) applyAfterInitialization(name string, instance any) (any, error) {
	p.mu.RLock()
	hooks := make([]hookEntry[InitializationPostProcessor], len(p.initialization))
	copy(hooks, p.initialization)
	p.mu.RUnlock()

	for _, e := range hooks {
		next, err := e.hook.PostProcessAfterInitialization(name, instance)
		if err != nil {
			return nil, err
		}
		if next != nil {
			instance = next
		}
	}
	return instance, nil
}

// resetMergeTracking 清空合并钩子的已处理标记（容器重置进入新一代）
func (p *pipeline) resetMergeTracking() {
	p.mergeMu.Lock()
	defer p.mergeMu.Unlock()
	p.mergeLocks = make(map[string]*sync.Mutex)
	p.mergeDone = make(map[string]struct{})
}
