package registry

// ScopeHandler 自定义作用域
// 定义的 Scope 既非 singleton 也非 prototype 时，按作用域名查找处理器。
// 处理器决定实例的存取策略：factory 执行完整的实例化流水线，
// 处理器决定是否缓存、缓存多久。
type ScopeHandler interface {
	// Get 返回作用域内该标识的实例，必要时调用 factory 创建
	Get(name string, factory func() (any, error)) (any, error)
	// Remove 从作用域移除实例，返回被移除的实例
	Remove(name string) (any, bool)
}

// Initializer 组件初始化钩子接口
// 属性填充完成后、命名初始化方法之前调用。
type Initializer interface {
	InitComponent() error
}

// Disposable 组件销毁钩子接口
// 容器重置/关闭时按创建逆序调用，先于命名销毁方法。
type Disposable interface {
	DestroyComponent() error
}
