package source

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrConflictingType 同名类型重复登记且类型不同
var ErrConflictingType = errors.New("ioc(source): conflicting type registration")

// TypeTable 类型名到类型描述符的映射
// 模板文件只能写类型名，宿主程序在加载前把名字绑定到具体 Go 类型。
// 并发读安全；重复登记同一类型是幂等的，登记不同类型则报错。
type TypeTable struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeTable 创建空的类型表
func NewTypeTable() *TypeTable {
	return &TypeTable{types: make(map[string]reflect.Type)}
}

// Register 登记类型名
func (t *TypeTable) Register(name string, typ reflect.Type) error {
	if name == "" {
		return fmt.Errorf("ioc(source): empty type name")
	}
	if typ == nil {
		return fmt.Errorf("ioc(source): nil type for %q", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.types[name]; ok {
		if existing == typ {
			return nil
		}
		return fmt.Errorf("%w: %q is %v, cannot rebind to %v", ErrConflictingType, name, existing, typ)
	}
	t.types[name] = typ
	return nil
}

// Lookup 查找类型名
func (t *TypeTable) Lookup(name string) (reflect.Type, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	typ, ok := t.types[name]
	return typ, ok
}

// Names 返回已登记的所有类型名
func (t *TypeTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	return names
}

// RegisterType 泛型便捷登记
func RegisterType[T any](t *TypeTable, name string) error {
	return t.Register(name, reflect.TypeOf((*T)(nil)).Elem())
}
