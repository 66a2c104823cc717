package ioc

import (
	"reflect"

	"github.com/gocrud/ioc/registry"
)

// New 创建组件注册中心
// 这是使用本库的入口点。
func New(opts ...registry.Option) *registry.Registry {
	return registry.New(opts...)
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Resolve 解析标识对应的组件并断言为类型 T
func Resolve[T any](r *registry.Registry, name string) (T, error) {
	var zero T
	inst, err := r.GetAs(name, TypeOf[T]())
	if err != nil {
		return zero, err
	}
	return inst.(T), nil
}

// ResolveByType 按类型解析唯一匹配的组件（零或一语义）
func ResolveByType[T any](r *registry.Registry) (T, error) {
	var zero T
	inst, err := r.ProviderOf(TypeOf[T]()).Get()
	if err != nil {
		return zero, err
	}
	return inst.(T), nil
}

// ProviderFor 返回类型化的延迟解析句柄
// 注册时不触发解析，首次调用解析一次并记忆结果。
func ProviderFor[T any](r *registry.Registry, name string) func() (T, error) {
	p := r.GetProvider(name)
	return func() (T, error) {
		var zero T
		inst, err := p.Get()
		if err != nil {
			return zero, err
		}
		v, ok := inst.(T)
		if !ok {
			return zero, &registry.TypeMismatchError{
				Name:      name,
				Requested: TypeOf[T](),
				Actual:    reflect.TypeOf(inst),
			}
		}
		return v, nil
	}
}
