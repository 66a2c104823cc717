package source

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gocrud/ioc/definition"
)

// Target 定义的注册目标
// definition.Store 和 registry.Registry 都满足此接口。
type Target interface {
	RegisterDefinition(def *definition.ComponentDefinition) error
	RegisterAlias(alias, target string) error
}

// Document 一次加载解析出的全部内容
type Document struct {
	Definitions []*definition.ComponentDefinition
	Aliases     map[string]string
}

// Apply 把文档内容注册到目标
func (d *Document) Apply(target Target) error {
	for _, def := range d.Definitions {
		if err := target.RegisterDefinition(def); err != nil {
			return err
		}
	}
	for alias, canonical := range d.Aliases {
		if err := target.RegisterAlias(alias, canonical); err != nil {
			return err
		}
	}
	return nil
}

// Loader YAML 模板加载器
// 引擎本身对模板文件格式不可知，这是驱动引擎的一种前端：
// 把声明式 YAML 模板解析成 ComponentDefinition 记录。
// 类型名通过 TypeTable 解析，工厂函数无法在文件里表达，
// 文件模板只支持类型反射构建和属性/构造参数注入。
type Loader struct {
	types *TypeTable
}

// NewLoader 创建加载器
func NewLoader(types *TypeTable) *Loader {
	if types == nil {
		types = NewTypeTable()
	}
	return &Loader{types: types}
}

// Types 返回加载器使用的类型表
func (l *Loader) Types() *TypeTable {
	return l.types
}

type fileDoc struct {
	Components []componentDoc    `yaml:"components"`
	Aliases    map[string]string `yaml:"aliases"`
}

type componentDoc struct {
	Name            string        `yaml:"name"`
	Type            string        `yaml:"type"`
	Scope           string        `yaml:"scope"`
	Parent          string        `yaml:"parent"`
	Abstract        bool          `yaml:"abstract"`
	LazyInit        *bool         `yaml:"lazyInit"`
	InitMethod      string        `yaml:"initMethod"`
	DestroyMethod   string        `yaml:"destroyMethod"`
	Properties      []propertyDoc `yaml:"properties"`
	ConstructorArgs []argumentDoc `yaml:"constructorArgs"`
}

type propertyDoc struct {
	Name     string `yaml:"name"`
	Value    any    `yaml:"value"`
	Ref      string `yaml:"ref"`
	Deferred bool   `yaml:"deferred"`
}

type argumentDoc struct {
	Index    int    `yaml:"index"`
	Value    any    `yaml:"value"`
	Ref      string `yaml:"ref"`
	Deferred bool   `yaml:"deferred"`
}

// Load 从 reader 解析模板文档
func (l *Loader) Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ioc(source): read templates: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ioc(source): parse templates: %w", err)
	}

	out := &Document{Aliases: doc.Aliases}
	for i, c := range doc.Components {
		def, err := l.toDefinition(c)
		if err != nil {
			return nil, fmt.Errorf("ioc(source): component %d (%q): %w", i, c.Name, err)
		}
		out.Definitions = append(out.Definitions, def)
	}
	return out, nil
}

// LoadFile 从文件解析模板文档
func (l *Loader) LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ioc(source): open %s: %w", path, err)
	}
	defer f.Close()
	return l.Load(f)
}

func (l *Loader) toDefinition(c componentDoc) (*definition.ComponentDefinition, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("component must have a name")
	}

	def := &definition.ComponentDefinition{
		Name:          c.Name,
		Scope:         c.Scope,
		Parent:        c.Parent,
		Abstract:      c.Abstract,
		LazyInit:      c.LazyInit,
		InitMethod:    c.InitMethod,
		DestroyMethod: c.DestroyMethod,
	}

	if c.Type != "" {
		typ, ok := l.types.Lookup(c.Type)
		if !ok {
			return nil, fmt.Errorf("unknown type %q, register it in the TypeTable first", c.Type)
		}
		def.Type = typ
	}

	for _, p := range c.Properties {
		if p.Name == "" {
			return nil, fmt.Errorf("property must have a name")
		}
		vr, err := toValueRef(p.Value, p.Ref, p.Deferred)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		def.Properties = append(def.Properties, definition.PropertySpec{Name: p.Name, ValueRef: vr})
	}

	for _, a := range c.ConstructorArgs {
		vr, err := toValueRef(a.Value, a.Ref, a.Deferred)
		if err != nil {
			return nil, fmt.Errorf("constructor argument %d: %w", a.Index, err)
		}
		def.ConstructorArgs = append(def.ConstructorArgs, definition.ArgumentSpec{Index: a.Index, ValueRef: vr})
	}

	return def, nil
}

func toValueRef(value any, ref string, deferred bool) (definition.ValueRef, error) {
	if ref != "" && value != nil {
		return definition.ValueRef{}, fmt.Errorf("value and ref are mutually exclusive")
	}
	if deferred && ref == "" {
		return definition.ValueRef{}, fmt.Errorf("deferred requires a ref")
	}
	if ref != "" {
		return definition.ValueRef{Ref: ref, Deferred: deferred}, nil
	}
	return definition.Val(value), nil
}
