package registry

import (
	"sync"
)

// Provider 延迟解析句柄
// 注册或注入时不做任何解析，首次 Get 时解析一次并在句柄生命周期内记忆结果。
// 注入 Provider 而非实例可以打破构造期循环依赖，也可表达可选依赖：
// Get 返回的错误就是解析错误，由调用方决定如何降级。
type Provider struct {
	once    sync.Once
	resolve func() (any, error)
	val     any
	err     error
}

func newProvider(resolve func() (any, error)) *Provider {
	return &Provider{resolve: resolve}
}

// Get 解析并返回实例，结果（含错误）被记忆
func (p *Provider) Get() (any, error) {
	p.once.Do(func() {
		p.val, p.err = p.resolve()
		p.resolve = nil
	})
	return p.val, p.err
}
