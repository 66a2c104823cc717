package definition

import (
	"reflect"
)

// 作用域标签
// 空字符串表示未显式声明：合并时继承父定义，最终默认单例。
// 其余取值视为自定义作用域，由注册中心登记的作用域处理器解释。
const (
	ScopeSingleton = "singleton"
	ScopePrototype = "prototype"
)

// ValueRef 值或引用
// 二者取其一：Value 是字面值，Ref 是另一个组件的标识。
// Deferred 仅对 Ref 有意义：注入延迟解析句柄而非立即解析实例，
// 用于打破构造期循环依赖或表达可选依赖。
type ValueRef struct {
	Value    any
	Ref      string
	Deferred bool
}

// Val 构造字面值
func Val(v any) ValueRef {
	return ValueRef{Value: v}
}

// Ref 构造组件引用
func Ref(name string) ValueRef {
	return ValueRef{Ref: name}
}

// DeferredRef 构造延迟解析的组件引用
func DeferredRef(name string) ValueRef {
	return ValueRef{Ref: name, Deferred: true}
}

// IsRef 判断是否为引用
func (v ValueRef) IsRef() bool {
	return v.Ref != ""
}

// ArgumentSpec 构造参数说明，按位置绑定到工厂函数参数
type ArgumentSpec struct {
	Index int
	ValueRef
}

// PropertySpec 属性说明，按字段名绑定到结构体字段
type PropertySpec struct {
	Name string
	ValueRef
}

// ComponentDefinition 组件模板
// 声明式地描述如何构建一个组件。在容器冻结前可变；
// 冻结后的结构性修改属于异常路径，必须先使合并缓存失效。
type ComponentDefinition struct {
	// Name 组件标识，在一个注册中心代内唯一
	Name string

	// Type 目标类型描述符
	// 无 Factory 且无 Value 时按结构体反射构建（指针或结构体类型均可）。
	Type reflect.Type

	// Scope 作用域标签，见 ScopeSingleton / ScopePrototype
	Scope string

	// Parent 父模板标识，延迟解析，不拥有父模板
	Parent string

	// Abstract 抽象模板只能被继承合并，不能直接实例化
	Abstract bool

	// LazyInit 延迟初始化标记，nil 表示未声明（合并时继承）
	LazyInit *bool

	// Factory 构造能力：函数，参数按 ConstructorArgs 解析后的值依次绑定，
	// 最后一个返回值可以是 error
	Factory any

	// Value 预构建实例，IsValue 为 true 时直接使用
	Value   any
	IsValue bool

	// ConstructorArgs 有序构造参数
	ConstructorArgs []ArgumentSpec

	// Properties 有序属性说明
	Properties []PropertySpec

	// InitMethod 初始化方法名（niladic，可返回 error）
	InitMethod string

	// DestroyMethod 销毁方法名，容器关闭时按创建逆序调用
	DestroyMethod string
}

// Bool 构造 *bool，便于填写 LazyInit
func Bool(b bool) *bool {
	return &b
}

// clone 返回定义的浅拷贝，切片单独复制
func (d *ComponentDefinition) clone() *ComponentDefinition {
	c := *d
	c.ConstructorArgs = append([]ArgumentSpec(nil), d.ConstructorArgs...)
	c.Properties = append([]PropertySpec(nil), d.Properties...)
	return &c
}

// MergedDefinition 合并后的扁平定义
// 父链折叠完毕，不再含未解析的 Parent 引用，可直接驱动实例化。
// 抽象标记被保留：实例化路径负责拒绝抽象定义。
type MergedDefinition struct {
	ComponentDefinition
}

// IsSingleton 判断有效作用域是否为单例（未声明时默认单例）
func (m *MergedDefinition) IsSingleton() bool {
	return m.Scope == "" || m.Scope == ScopeSingleton
}

// IsPrototype 判断有效作用域是否为原型
func (m *MergedDefinition) IsPrototype() bool {
	return m.Scope == ScopePrototype
}

// IsLazyInit 返回有效的延迟初始化标记
func (m *MergedDefinition) IsLazyInit() bool {
	return m.LazyInit != nil && *m.LazyInit
}
