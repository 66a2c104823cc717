package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gocrud/ioc/definition"
	"github.com/gocrud/ioc/event"
	"github.com/gocrud/ioc/metadata"
)

// Registry 组件注册中心（门面）
// 组合定义仓库、合并器、单例缓存与钩子流水线，实现完整的创建算法和
// 公开的查找/类型匹配契约。单例创建在一个容器代内恰好一次，由按标识
// 划分的创建锁保证；循环依赖通过随递归传递的请求上下文检测。
type Registry struct {
	store     *definition.Store
	merger    *definition.Merger
	instances *instanceCache
	pipeline  *pipeline

	structs      *metadata.StructReader
	meta         *metadata.Cache
	metaCapacity int

	scopesMu sync.RWMutex
	scopes   map[string]ScopeHandler

	logger *zap.Logger
	bus    *event.Bus

	genMu      sync.RWMutex
	generation string

	closed atomic.Bool
}

// New 创建注册中心
func New(opts ...Option) *Registry {
	store := definition.NewStore()
	r := &Registry{
		store:        store,
		merger:       definition.NewMerger(store),
		instances:    newInstanceCache(),
		pipeline:     newPipeline(),
		structs:      metadata.NewStructReader(),
		metaCapacity: metadata.DefaultCapacity,
		scopes:       make(map[string]ScopeHandler),
		logger:       zap.NewNop(),
		generation:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.meta = metadata.NewCache(r.structs, metadata.WithCapacity(r.metaCapacity))
	return r
}

// Generation 返回当前容器代标识
func (r *Registry) Generation() string {
	r.genMu.RLock()
	defer r.genMu.RUnlock()
	return r.generation
}

// ---------------- 注册 ----------------

// RegisterDefinition 注册组件定义
// 已完整产出过单例的标识拒绝事后的结构性修改；冻结后的合法修改会使
// 合并缓存整体失效。
func (r *Registry) RegisterDefinition(def *definition.ComponentDefinition) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if def != nil && r.instances.wasCreated(r.store.ResolveAlias(def.Name)) {
		return fmt.Errorf("ioc: component %q was already created, structural edits are rejected", def.Name)
	}
	return r.store.RegisterDefinition(def)
}

// RegisterAlias 注册别名
func (r *Registry) RegisterAlias(alias, target string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.store.RegisterAlias(alias, target)
}

// RegisterScopeHandler 登记自定义作用域处理器
func (r *Registry) RegisterScopeHandler(scope string, handler ScopeHandler) error {
	if scope == "" || scope == definition.ScopeSingleton || scope == definition.ScopePrototype {
		return fmt.Errorf("ioc: scope %q is built in and cannot be overridden", scope)
	}
	r.scopesMu.Lock()
	defer r.scopesMu.Unlock()
	r.scopes[scope] = handler
	return nil
}

// AddMergeProcessor 注册合并后钩子
func (r *Registry) AddMergeProcessor(p MergePostProcessor) {
	r.pipeline.addMerge(p)
}

// AddInstantiationProcessor 注册原始实例化后钩子
func (r *Registry) AddInstantiationProcessor(p InstantiationPostProcessor) {
	r.pipeline.addInstantiation(p)
}

// AddInitializationProcessor 注册初始化前后钩子
func (r *Registry) AddInitializationProcessor(p InitializationPostProcessor) {
	r.pipeline.addInitialization(p)
}

// ---------------- 查找 ----------------

// Get 解析并返回标识对应的组件实例
func (r *Registry) Get(name string) (any, error) {
	return r.resolve(name, newResolutionContext())
}

// GetAs 解析实例并校验其可赋给请求类型
func (r *Registry) GetAs(name string, typ reflect.Type) (any, error) {
	inst, err := r.resolve(name, newResolutionContext())
	if err != nil {
		return nil, err
	}
	actual := reflect.TypeOf(inst)
	if actual == nil || !actual.AssignableTo(typ) {
		return nil, &TypeMismatchError{Name: name, Requested: typ, Actual: actual}
	}
	return inst, nil
}

// GetProvider 返回标识的延迟解析句柄
// 注册时不触发任何解析；首次 Get 用全新的请求链解析，因此挂起的
// 循环会在环的根创建完成后自然闭合。
func (r *Registry) GetProvider(name string) *Provider {
	return newProvider(func() (any, error) {
		return r.Get(name)
	})
}

// ProviderOf 返回类型的延迟解析句柄（零或一语义）
// 解析时要求恰有一个定义匹配该类型，零个或多个都是错误。
func (r *Registry) ProviderOf(typ reflect.Type) *Provider {
	return newProvider(func() (any, error) {
		names := r.NamesOf(typ)
		switch len(names) {
		case 0:
			return nil, &definition.NoSuchDefinitionError{Name: typ.String()}
		case 1:
			return r.Get(names[0])
		default:
			return nil, fmt.Errorf("ioc: %d components match type %v: %v", len(names), typ, names)
		}
	})
}

// NamesOf 返回类型匹配的全部标识（零或多语义），不触发新的实例化
func (r *Registry) NamesOf(typ reflect.Type) []string {
	var names []string
	for _, name := range r.store.Names() {
		ok, err := r.IsTypeMatch(name, typ)
		if err == nil && ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ContainsDefinition 判断标识（别名解析后）是否有定义，纯元数据查询
func (r *Registry) ContainsDefinition(name string) bool {
	return r.store.Contains(name)
}

// IsSingleton 判断标识的有效作用域是否为单例，不触发实例化
func (r *Registry) IsSingleton(name string) (bool, error) {
	md, err := r.merger.Merge(name)
	if err != nil {
		return false, err
	}
	return md.IsSingleton(), nil
}

// IsPrototype 判断标识的有效作用域是否为原型，不触发实例化
func (r *Registry) IsPrototype(name string) (bool, error) {
	md, err := r.merger.Merge(name)
	if err != nil {
		return false, err
	}
	return md.IsPrototype(), nil
}

// IsTypeMatch 判断标识解析出的类型是否可赋给请求类型
// 只要合并定义能静态确定目标类型就不触发实例化。静态类型不足以回答
// （工厂返回接口）且标识是已经实现过的单例时，退回用缓存实例的动态
// 类型回答。这个回退是刻意保留的行为：它只读取既有单例，绝不会为了
// 类型查询触发新的构造。
func (r *Registry) IsTypeMatch(name string, typ reflect.Type) (bool, error) {
	md, err := r.merger.Merge(name)
	if err != nil {
		return false, err
	}

	st := staticTypeOf(md)
	if st != nil && st.Kind() != reflect.Interface {
		return st.AssignableTo(typ), nil
	}

	if md.IsSingleton() {
		canonical := r.store.ResolveAlias(name)
		if inst, ok := r.instances.get(canonical); ok {
			actual := reflect.TypeOf(inst)
			return actual != nil && actual.AssignableTo(typ), nil
		}
	}
	if st != nil {
		return st.AssignableTo(typ), nil
	}
	return false, nil
}

// PreInstantiateSingletons 急切创建所有未标记 lazy-init 的单例
// 抽象定义被跳过。第一个失败即返回。
func (r *Registry) PreInstantiateSingletons() error {
	names := r.store.Names()
	sort.Strings(names)
	for _, name := range names {
		md, err := r.merger.Merge(name)
		if err != nil {
			return err
		}
		if md.Abstract || !md.IsSingleton() || md.IsLazyInit() {
			continue
		}
		if _, err := r.Get(name); err != nil {
			return err
		}
	}
	return nil
}

// ---------------- 创建算法 ----------------

func (r *Registry) resolve(name string, rctx *resolutionContext) (any, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	canonical := r.store.ResolveAlias(name)
	md, err := r.merger.Merge(canonical)
	if err != nil {
		return nil, err
	}
	if md.Abstract {
		return nil, &definition.AbstractDefinitionError{Name: canonical}
	}

	// 同一请求链上的重入即循环依赖；必须在拿创建锁之前检测
	if cderr := rctx.enter(canonical); cderr != nil {
		return nil, cderr
	}
	defer rctx.exit(canonical)

	// 首次实例化冻结容器
	r.store.Freeze()

	if err := r.pipeline.applyMerge(canonical, md, staticTypeOf(md)); err != nil {
		return nil, r.creationError(canonical, err)
	}

	switch {
	case md.IsSingleton():
		return r.getSingleton(canonical, md, rctx)
	case md.IsPrototype():
		return r.createInstance(canonical, md, rctx)
	default:
		return r.getCustomScoped(canonical, md, rctx)
	}
}

// getSingleton 双重检查的单例获取
// 每个标识一把创建锁：并发查找同一标识时只有一个线程构造，其余阻塞
// 等待后复查缓存；不相关标识的创建完全并行。
func (r *Registry) getSingleton(name string, md *definition.MergedDefinition, rctx *resolutionContext) (any, error) {
	if inst, ok := r.instances.get(name); ok {
		return inst, nil
	}

	lock := r.instances.creationLock(name)
	lock.Lock()
	defer lock.Unlock()

	if inst, ok := r.instances.get(name); ok {
		return inst, nil
	}

	inst, err := r.createInstance(name, md, rctx)
	if err != nil {
		// 失败终结本次尝试：不发布半成品，下次查找从头重试
		return nil, err
	}

	r.instances.storeSingleton(name, inst)
	r.registerDestroyer(name, md, inst)

	r.logger.Debug("singleton created",
		zap.String("component", name),
		zap.String("generation", r.Generation()))
	r.publish(ComponentCreated{Name: name, Generation: r.Generation()})
	return inst, nil
}

func (r *Registry) getCustomScoped(name string, md *definition.MergedDefinition, rctx *resolutionContext) (any, error) {
	r.scopesMu.RLock()
	handler, ok := r.scopes[md.Scope]
	r.scopesMu.RUnlock()
	if !ok {
		return nil, r.creationError(name, fmt.Errorf("no handler registered for scope %q", md.Scope))
	}
	return handler.Get(name, func() (any, error) {
		return r.createInstance(name, md, rctx)
	})
}

// createInstance 完整的实例化流水线
// 原始构造、实例化后钩子、属性填充、初始化前钩子、生命周期初始化、
// 初始化后钩子。任一步失败都中止本次尝试并包装为 ComponentCreationError。
func (r *Registry) createInstance(name string, md *definition.MergedDefinition, rctx *resolutionContext) (any, error) {
	inst, err := r.instantiate(md, rctx)
	if err != nil {
		return nil, r.creationError(name, err)
	}

	if inst, err = r.pipeline.applyAfterInstantiation(name, inst); err != nil {
		return nil, r.creationError(name, err)
	}

	if err = r.applyProperties(md, inst, rctx); err != nil {
		return nil, r.creationError(name, err)
	}

	if inst, err = r.pipeline.applyBeforeInitialization(name, inst); err != nil {
		return nil, r.creationError(name, err)
	}

	if err = r.initialize(md, inst); err != nil {
		return nil, r.creationError(name, err)
	}

	if inst, err = r.pipeline.applyAfterInitialization(name, inst); err != nil {
		return nil, r.creationError(name, err)
	}
	return inst, nil
}

// instantiate 原始构造：预构建值、工厂函数或结构体反射三选一
func (r *Registry) instantiate(md *definition.MergedDefinition, rctx *resolutionContext) (any, error) {
	if md.IsValue {
		return md.Value, nil
	}
	if md.Factory != nil {
		return r.invokeFactory(md, rctx)
	}
	if md.Type != nil {
		t := md.Type
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("type %v is not a struct and has no factory", md.Type)
		}
		return reflect.New(t).Interface(), nil
	}
	return nil, fmt.Errorf("definition declares no construction capability")
}

// invokeFactory 调用工厂函数
// 构造参数按位置绑定，最后一个返回值若为 error 则检查之。
func (r *Registry) invokeFactory(md *definition.MergedDefinition, rctx *resolutionContext) (any, error) {
	fnVal := reflect.ValueOf(md.Factory)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("factory is %T, not a function", md.Factory)
	}
	if fnType.NumOut() == 0 {
		return nil, fmt.Errorf("factory must return at least one value")
	}

	specs := make(map[int]definition.ArgumentSpec, len(md.ConstructorArgs))
	for _, a := range md.ConstructorArgs {
		specs[a.Index] = a
	}

	args := make([]reflect.Value, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		spec, ok := specs[i]
		if !ok {
			return nil, fmt.Errorf("no constructor argument declared for parameter %d", i)
		}
		val, err := r.resolveValueRef(spec.ValueRef, rctx)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		av, err := coerce(val, fnType.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = av
	}

	results := fnVal.Call(args)

	if n := len(results); n > 1 {
		last := results[n-1]
		if last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	first := results[0]
	if (first.Kind() == reflect.Ptr || first.Kind() == reflect.Interface) && first.IsNil() {
		return nil, fmt.Errorf("factory returned nil instance")
	}
	return first.Interface(), nil
}

// applyProperties 按属性说明填充结构体字段
// 可注入字段通过元数据缓存发现，避免重复反射扫描。
func (r *Registry) applyProperties(md *definition.MergedDefinition, inst any, rctx *resolutionContext) error {
	if len(md.Properties) == 0 {
		return nil
	}

	v := reflect.ValueOf(inst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cannot inject properties into %T, need a struct pointer", inst)
	}
	elem := v.Elem()

	meta, err := r.meta.Get(r.structs.Identity(v.Type()))
	if err != nil {
		return err
	}

	for _, p := range md.Properties {
		field, ok := meta.Fields[p.Name]
		if !ok {
			return fmt.Errorf("type %v has no injectable field %q", elem.Type(), p.Name)
		}
		val, err := r.resolveValueRef(p.ValueRef, rctx)
		if err != nil {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}
		fv, err := coerce(val, field.Type)
		if err != nil {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}
		elem.Field(field.Index).Set(fv)
	}
	return nil
}

// resolveValueRef 解析值或引用
// 延迟引用注入 Provider 句柄而不是立即解析，这是打破循环依赖的出口。
func (r *Registry) resolveValueRef(v definition.ValueRef, rctx *resolutionContext) (any, error) {
	if !v.IsRef() {
		return v.Value, nil
	}
	if v.Deferred {
		return r.GetProvider(v.Ref), nil
	}
	return r.resolve(v.Ref, rctx)
}

// initialize 运行生命周期初始化：接口钩子先行，命名方法随后
func (r *Registry) initialize(md *definition.MergedDefinition, inst any) error {
	if init, ok := inst.(Initializer); ok {
		if err := init.InitComponent(); err != nil {
			return fmt.Errorf("InitComponent: %w", err)
		}
		if md.InitMethod == "InitComponent" {
			return nil
		}
	}
	if md.InitMethod != "" {
		return callNamedMethod(inst, md.InitMethod)
	}
	return nil
}

// registerDestroyer 登记销毁回调
func (r *Registry) registerDestroyer(name string, md *definition.MergedDefinition, inst any) {
	_, disposable := inst.(Disposable)
	if !disposable && md.DestroyMethod == "" {
		return
	}
	method := md.DestroyMethod
	r.instances.addDestroyer(name, func() error {
		if d, ok := inst.(Disposable); ok {
			if err := d.DestroyComponent(); err != nil {
				return err
			}
			if method == "DestroyComponent" {
				return nil
			}
		}
		if method != "" {
			return callNamedMethod(inst, method)
		}
		return nil
	})
}

func (r *Registry) creationError(name string, err error) error {
	return &ComponentCreationError{Name: name, Generation: r.Generation(), Err: err}
}

// publish 发布生命周期通知，fire-and-continue：监听器失败只记日志
func (r *Registry) publish(ev any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ev, r); err != nil {
		r.logger.Warn("lifecycle event listener failed", zap.Error(err))
	}
}

// ---------------- 重置与关闭 ----------------

// Reset 重置容器并进入新一代
// 按创建逆序调用销毁回调，清空单例缓存、合并缓存、合并钩子标记与
// 元数据缓存，解除冻结，并轮换代标识。
func (r *Registry) Reset() {
	old := r.Generation()

	for _, d := range r.instances.drain() {
		if err := d.fn(); err != nil {
			r.logger.Warn("destroy callback failed",
				zap.String("component", d.name),
				zap.Error(err))
		} else {
			r.publish(ComponentDestroyed{Name: d.name, Generation: old})
		}
	}

	r.pipeline.resetMergeTracking()
	r.merger.InvalidateAll()
	r.meta.Clear()
	r.store.Unfreeze()

	next := uuid.NewString()
	r.genMu.Lock()
	r.generation = next
	r.genMu.Unlock()

	r.logger.Debug("registry reset",
		zap.String("old_generation", old),
		zap.String("new_generation", next))
	r.publish(RegistryReset{OldGeneration: old, NewGeneration: next})
}

// Close 关闭容器：执行一次 Reset 后拒绝后续使用，幂等
func (r *Registry) Close() {
	if r.closed.Swap(true) {
		return
	}
	gen := r.Generation()
	r.Reset()
	r.publish(RegistryClosed{Generation: gen})
}

// staticTypeOf 从合并定义静态确定目标类型
// 结构体类型归一化为指针形态（实例化产出的是指针）。
// 无法确定时返回 nil。
func staticTypeOf(md *definition.MergedDefinition) reflect.Type {
	if md.IsValue {
		return reflect.TypeOf(md.Value)
	}
	if md.Factory != nil {
		ft := reflect.TypeOf(md.Factory)
		if ft != nil && ft.Kind() == reflect.Func && ft.NumOut() > 0 {
			return ft.Out(0)
		}
		return nil
	}
	if md.Type != nil {
		if md.Type.Kind() == reflect.Struct {
			return reflect.PtrTo(md.Type)
		}
		return md.Type
	}
	return nil
}

// coerce 把解析出的值转换为目标类型的 reflect.Value
func coerce(val any, target reflect.Type) (reflect.Value, error) {
	if val == nil {
		switch target.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %v", target)
	}
	v := reflect.ValueOf(val)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("value of type %T is not assignable to %v", val, target)
}

// callNamedMethod 反射调用 niladic 生命周期方法，允许返回 error
func callNamedMethod(inst any, name string) error {
	m := reflect.ValueOf(inst).MethodByName(name)
	if !m.IsValid() {
		return fmt.Errorf("type %T has no method %q", inst, name)
	}
	if m.Type().NumIn() != 0 {
		return fmt.Errorf("lifecycle method %q must take no arguments", name)
	}
	results := m.Call(nil)
	if n := len(results); n > 0 {
		last := results[n-1]
		if last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}
