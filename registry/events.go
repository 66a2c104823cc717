package registry

// 注册中心生命周期通知
// 配置了事件总线（WithEventBus）时，注册中心在关键生命周期点发布这些
// 通知，来源为注册中心本身。发布采用 fire-and-continue 语义：
// 监听器失败只记日志，绝不影响组件创建路径。

// ComponentCreated 单例完整产出并发布后触发
type ComponentCreated struct {
	Name       string
	Generation string
}

// ComponentDestroyed 销毁回调执行后触发
type ComponentDestroyed struct {
	Name       string
	Generation string
}

// RegistryReset 容器重置、进入新一代后触发
type RegistryReset struct {
	OldGeneration string
	NewGeneration string
}

// RegistryClosed 容器关闭后触发
type RegistryClosed struct {
	Generation string
}
