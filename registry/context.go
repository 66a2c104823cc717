package registry

// resolutionContext 请求范围的解析上下文
// 显式随递归解析调用传递（参数传递而非环境态），只记录本次解析请求
// 正在进行中的标识栈。不同请求对同一标识的并发创建互不混淆：
// 只有同一条逻辑请求链上的重入才构成循环依赖。
type resolutionContext struct {
	stack  []string
	active map[string]int // 标识 -> 栈下标
}

func newResolutionContext() *resolutionContext {
	return &resolutionContext{active: make(map[string]int)}
}

// enter 把标识压入请求链
// 标识已在链上时返回包含完整环的 CircularDependencyError。
func (c *resolutionContext) enter(name string) *CircularDependencyError {
	if idx, ok := c.active[name]; ok {
		chain := append(append([]string(nil), c.stack[idx:]...), name)
		return &CircularDependencyError{Chain: chain}
	}
	c.active[name] = len(c.stack)
	c.stack = append(c.stack, name)
	return nil
}

// exit 把标识弹出请求链，必须与 enter 配对调用
func (c *resolutionContext) exit(name string) {
	delete(c.active, name)
	if n := len(c.stack); n > 0 && c.stack[n-1] == name {
		c.stack = c.stack[:n-1]
	}
}
