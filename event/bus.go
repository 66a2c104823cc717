package event

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Listener 事件监听能力
type Listener interface {
	OnEvent(event any) error
}

// TypedListener 显式声明接受的事件类型
// 返回 nil 表示接受所有事件（无界过滤器）。
type TypedListener interface {
	Listener
	EventType() reflect.Type
}

// SourceFilter 显式声明接受的事件来源类型
type SourceFilter interface {
	SourceType() reflect.Type
}

// Unwrapper 代理/包装监听器
// 类型过滤器针对底层目标解析，而不是包装器本身。
type Unwrapper interface {
	Unwrap() Listener
}

// registration 一条有序的监听注册
type registration struct {
	listener   Listener
	eventType  reflect.Type // nil = 接受所有事件类型
	sourceType reflect.Type // nil = 接受所有来源
	order      int
	seq        int
}

func (r *registration) matches(eventType, sourceType reflect.Type) bool {
	if r.eventType != nil && !eventType.AssignableTo(r.eventType) {
		return false
	}
	if r.sourceType != nil {
		if sourceType == nil || !sourceType.AssignableTo(r.sourceType) {
			return false
		}
	}
	return true
}

// Subscription 一次订阅的句柄，用于取消
type Subscription struct {
	bus *Bus
	reg *registration
}

// Cancel 取消订阅，幂等
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s.reg)
	s.bus = nil
}

// Bus 类型感知的事件总线
// 维护有序的监听注册并按优先级同步分发通知。
// 给定固定的注册序列和 order 值，分发顺序是确定的：
// order 小者先行，相同 order 按注册先后。
type Bus struct {
	mu      sync.RWMutex
	regs    []*registration
	nextSeq int
	logger  *zap.Logger

	// inferred 按底层目标（解包后）的具体类型缓存推断出的事件类型
	// 过滤器，避免对同一监听器类型重复探测
	inferred sync.Map // reflect.Type -> reflect.Type (可为 nil 类型条目 universalFilter)
}

// BusOption 总线配置选项
type BusOption func(*Bus)

// WithLogger 设置结构化日志器
func WithLogger(logger *zap.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus 创建事件总线
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SubscribeOption 订阅配置选项
type SubscribeOption func(*registration)

// WithEventType 覆盖监听器接受的事件类型
func WithEventType(t reflect.Type) SubscribeOption {
	return func(r *registration) {
		r.eventType = t
	}
}

// WithSourceType 设置来源类型过滤器
func WithSourceType(t reflect.Type) SubscribeOption {
	return func(r *registration) {
		r.sourceType = t
	}
}

// WithOrder 设置分发顺序值，小者先行
func WithOrder(order int) SubscribeOption {
	return func(r *registration) {
		r.order = order
	}
}

// Subscribe 注册监听器
// 事件类型过滤器按以下优先级确定：
//  1. WithEventType 显式覆盖（动态构造的监听器用这条路）；
//  2. 监听器（解包代理后）实现 TypedListener 时取其声明；
//  3. 都没有时视为无界过滤器，接收所有事件。
func (b *Bus) Subscribe(l Listener, opts ...SubscribeOption) *Subscription {
	reg := &registration{listener: l}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.eventType == nil {
		reg.eventType = b.inferEventType(l)
	}
	if reg.sourceType == nil {
		if sf, ok := unwrap(l).(SourceFilter); ok {
			reg.sourceType = sf.SourceType()
		}
	}

	b.mu.Lock()
	reg.seq = b.nextSeq
	b.nextSeq++
	b.regs = append(b.regs, reg)
	sort.SliceStable(b.regs, func(i, j int) bool {
		if b.regs[i].order != b.regs[j].order {
			return b.regs[i].order < b.regs[j].order
		}
		return b.regs[i].seq < b.regs[j].seq
	})
	b.mu.Unlock()

	return &Subscription{bus: b, reg: reg}
}

// listenerFunc 把函数适配成 Listener
type listenerFunc struct {
	fn func(event any) error
}

func (l *listenerFunc) OnEvent(event any) error {
	return l.fn(event)
}

// SubscribeFunc 注册函数监听器，接受所有事件类型（除非用 WithEventType 收窄）
func (b *Bus) SubscribeFunc(fn func(event any) error, opts ...SubscribeOption) *Subscription {
	return b.Subscribe(&listenerFunc{fn: fn}, opts...)
}

// On 注册只接收 E 类型事件的监听函数
// 类型描述符在注册时计算一次，之后的匹配是普通的数据比较。
func On[E any](b *Bus, fn func(event E) error, opts ...SubscribeOption) *Subscription {
	et := reflect.TypeOf((*E)(nil)).Elem()
	wrapped := func(event any) error {
		return fn(event.(E))
	}
	return b.Subscribe(&listenerFunc{fn: wrapped}, append([]SubscribeOption{WithEventType(et)}, opts...)...)
}

// Publish 同步分发通知
// 匹配规则：事件运行时类型可赋给监听器的事件过滤器，且来源类型可赋给
// 来源过滤器（任一过滤器缺省即视为匹配）。按 order 升序逐个调用。
//
// 失败策略：传播。第一个出错的监听器中止分发，错误包装后返回给发布方。
// 需要 fire-and-continue 语义的集成层应自行在监听器内吞掉错误。
func (b *Bus) Publish(event any, source any) error {
	if event == nil {
		return fmt.Errorf("event: cannot publish nil event")
	}
	eventType := reflect.TypeOf(event)
	var sourceType reflect.Type
	if source != nil {
		sourceType = reflect.TypeOf(source)
	}

	b.mu.RLock()
	snapshot := make([]*registration, len(b.regs))
	copy(snapshot, b.regs)
	b.mu.RUnlock()

	for _, reg := range snapshot {
		if !reg.matches(eventType, sourceType) {
			continue
		}
		if err := reg.listener.OnEvent(event); err != nil {
			b.logger.Debug("event listener failed",
				zap.String("event", eventType.String()),
				zap.Int("order", reg.order))
			return fmt.Errorf("event: listener (order %d) failed for %s: %w", reg.order, eventType, err)
		}
	}
	return nil
}

// ListenerCount 返回当前注册数
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.regs)
}

func (b *Bus) unsubscribe(reg *registration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.regs {
		if r == reg {
			b.regs = append(b.regs[:i], b.regs[i+1:]...)
			return
		}
	}
}

// inferEventType 推断监听器接受的事件类型
// 解包代理链后探测 TypedListener 声明。结果按底层目标的具体类型缓存：
// 同一种代理类型可以包装不同的目标，过滤器必须跟着目标走。
// 推断不出时返回 nil，即无界过滤器。
func (b *Bus) inferEventType(l Listener) reflect.Type {
	target := unwrap(l)
	key := reflect.TypeOf(target)
	if key != nil {
		if cached, ok := b.inferred.Load(key); ok {
			t, _ := cached.(reflect.Type)
			return t
		}
	}

	var inferred reflect.Type
	if tl, ok := target.(TypedListener); ok {
		inferred = tl.EventType()
	}

	if key != nil {
		b.inferred.Store(key, inferred)
	}
	return inferred
}

// unwrap 沿 Unwrapper 链走到底层监听器
func unwrap(l Listener) Listener {
	for {
		u, ok := l.(Unwrapper)
		if !ok {
			return l
		}
		inner := u.Unwrap()
		if inner == nil || inner == l {
			return l
		}
		l = inner
	}
}

// TypeOf 返回 T 的类型描述符，便于填写过滤器
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
