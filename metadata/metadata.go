package metadata

import (
	"fmt"
	"reflect"
	"sync"
)

// Metadata 资源的结构元数据
// 描述一个结构体类型的可注入字段，供属性填充路径复用，
// 避免每次实例化都重新做反射扫描。
type Metadata struct {
	// Resource 资源标识
	Resource string
	// Type 对应的结构体类型（非指针）
	Type reflect.Type
	// Fields 按字段名索引的可注入（导出且可设置）字段
	Fields map[string]Field
}

// Field 可注入字段的元数据
type Field struct {
	Index int
	Name  string
	Type  reflect.Type
}

// StructReader 基于反射的结构体元数据读取器
// 资源标识由 Identity 生成并在内部登记类型，Read 只接受已登记的标识。
type StructReader struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewStructReader 创建结构体元数据读取器
func NewStructReader() *StructReader {
	return &StructReader{types: make(map[string]reflect.Type)}
}

// Identity 登记类型并返回它的资源标识
// 指针类型会被解包到底层结构体。对同一类型重复调用返回相同标识。
func (r *StructReader) Identity(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	id := identityOf(t)

	r.mu.RLock()
	_, ok := r.types[id]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	r.types[id] = t
	r.mu.Unlock()
	return id
}

// Read 解析已登记资源的结构元数据
func (r *StructReader) Read(resource string) (*Metadata, error) {
	r.mu.RLock()
	t, ok := r.types[resource]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("metadata: unknown resource %q", resource)
	}

	meta := &Metadata{
		Resource: resource,
		Type:     t,
		Fields:   make(map[string]Field),
	}

	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			meta.Fields[f.Name] = Field{Index: i, Name: f.Name, Type: f.Type}
		}
	}

	return meta, nil
}

// identityOf 生成类型的稳定资源标识
func identityOf(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
