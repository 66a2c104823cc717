package registry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrClosed 注册中心已关闭
var ErrClosed = errors.New("ioc: registry is closed")

// CircularDependencyError 构造期循环依赖
// Chain 是本次解析请求链上的完整环，首尾为同一标识，例如 [a b a]。
// 链上至少一条边改用延迟句柄（DeferredRef）即可打破环。
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("ioc: circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

// TypeMismatchError 解析出的组件类型不能赋给请求类型
type TypeMismatchError struct {
	Name      string
	Requested reflect.Type
	Actual    reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("ioc: component %q has type %v, not assignable to requested %v",
		e.Name, e.Actual, e.Requested)
}

// ComponentCreationError 创建失败
// 包装构造或任一流水线钩子抛出的原因，携带标识与所在代，便于排障。
// 失败不粘滞：下一次查找是全新的创建尝试。
type ComponentCreationError struct {
	Name       string
	Generation string
	Err        error
}

func (e *ComponentCreationError) Error() string {
	return fmt.Sprintf("ioc: failed to create component %q (generation %s): %v",
		e.Name, e.Generation, e.Err)
}

func (e *ComponentCreationError) Unwrap() error {
	return e.Err
}
