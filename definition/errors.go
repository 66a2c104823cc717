package definition

import (
	"fmt"
	"strings"
)

// NoSuchDefinitionError 别名解析后仍找不到标识对应的定义
type NoSuchDefinitionError struct {
	Name string
}

func (e *NoSuchDefinitionError) Error() string {
	return fmt.Sprintf("ioc: no definition found for component %q", e.Name)
}

// AbstractDefinitionError 试图直接实例化抽象模板
type AbstractDefinitionError struct {
	Name string
}

func (e *AbstractDefinitionError) Error() string {
	return fmt.Sprintf("ioc: component %q is abstract and cannot be instantiated directly", e.Name)
}

// InvalidParentError 父链缺失或成环，在合并期即时发现
type InvalidParentError struct {
	Name  string
	Chain []string
	// Missing 非空表示链上引用了不存在的父定义
	Missing string
}

func (e *InvalidParentError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("ioc: component %q references missing parent %q (chain %s)",
			e.Name, e.Missing, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("ioc: parent chain of component %q is cyclic: %s",
		e.Name, strings.Join(e.Chain, " -> "))
}

// AliasError 非法的别名注册（自引用、成环或遮蔽已有定义）
type AliasError struct {
	Alias  string
	Target string
	Reason string
}

func (e *AliasError) Error() string {
	return fmt.Sprintf("ioc: cannot register alias %q for %q: %s", e.Alias, e.Target, e.Reason)
}
