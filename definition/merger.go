package definition

import (
	"sync"
)

// Merger 定义合并器
// 沿父链折叠模板，得到可直接实例化的扁平定义。
// 合并结果按标识缓存；仓库发生结构变更时整体失效
// （保守策略，按标识精确失效只是优化而非正确性要求）。
type Merger struct {
	store *Store

	mu    sync.RWMutex
	cache map[string]*MergedDefinition
}

// NewMerger 创建合并器并挂接仓库的变更回调
func NewMerger(store *Store) *Merger {
	m := &Merger{
		store: store,
		cache: make(map[string]*MergedDefinition),
	}
	store.OnChange(m.InvalidateAll)
	return m
}

// Merge 返回标识（别名解析后）的合并定义
// 未知标识返回 NoSuchDefinitionError；父链缺失或成环返回 InvalidParentError。
// 合并结果保留 Abstract 标记，由实例化路径拒绝抽象定义。
func (m *Merger) Merge(name string) (*MergedDefinition, error) {
	canonical := m.store.ResolveAlias(name)

	m.mu.RLock()
	if md, ok := m.cache[canonical]; ok {
		m.mu.RUnlock()
		return md, nil
	}
	m.mu.RUnlock()

	chain, err := m.chainOf(canonical)
	if err != nil {
		return nil, err
	}

	// 自根向叶折叠：子级覆盖标量字段，列表字段按位置/名称合并
	merged := chain[len(chain)-1].clone()
	for i := len(chain) - 2; i >= 0; i-- {
		overrideInto(merged, chain[i])
	}
	merged.Name = canonical
	merged.Parent = ""
	if merged.Scope == "" {
		merged.Scope = ScopeSingleton
	}

	md := &MergedDefinition{ComponentDefinition: *merged}

	m.mu.Lock()
	m.cache[canonical] = md
	m.mu.Unlock()
	return md, nil
}

// chainOf 收集从叶到根的定义链，带访问集防环
func (m *Merger) chainOf(name string) ([]*ComponentDefinition, error) {
	var chain []*ComponentDefinition
	var names []string
	visited := make(map[string]struct{})

	current := name
	for {
		if _, ok := visited[current]; ok {
			return nil, &InvalidParentError{Name: name, Chain: append(names, current)}
		}
		visited[current] = struct{}{}
		names = append(names, current)

		def, ok := m.store.Definition(current)
		if !ok {
			if current == name {
				return nil, &NoSuchDefinitionError{Name: name}
			}
			return nil, &InvalidParentError{Name: name, Chain: names, Missing: current}
		}
		chain = append(chain, def)

		if def.Parent == "" {
			return chain, nil
		}
		current = m.store.ResolveAlias(def.Parent)
	}
}

// InvalidateAll 使全部合并缓存失效
// 定义变更会影响以它为父的所有后代，按标识精确失效需要反向追踪父链，
// 不值得：整体失效后按需重建。
func (m *Merger) InvalidateAll() {
	m.mu.Lock()
	m.cache = make(map[string]*MergedDefinition)
	m.mu.Unlock()
}

// overrideInto 把子定义叠加到累积结果上
// 标量字段就近者胜；构造参数按 Index、属性按 Name 合并。
func overrideInto(merged *ComponentDefinition, child *ComponentDefinition) {
	if child.Type != nil {
		merged.Type = child.Type
	}
	if child.Scope != "" {
		merged.Scope = child.Scope
	}
	if child.LazyInit != nil {
		merged.LazyInit = child.LazyInit
	}
	// 抽象标记不继承：取子级自身的声明
	merged.Abstract = child.Abstract

	// 构造方式就近者胜：子级声明工厂或预构建值时整体替换
	if child.IsValue {
		merged.Value = child.Value
		merged.IsValue = true
		merged.Factory = nil
	} else if child.Factory != nil {
		merged.Factory = child.Factory
		merged.Value = nil
		merged.IsValue = false
	}

	if child.InitMethod != "" {
		merged.InitMethod = child.InitMethod
	}
	if child.DestroyMethod != "" {
		merged.DestroyMethod = child.DestroyMethod
	}

	merged.ConstructorArgs = mergeArgs(merged.ConstructorArgs, child.ConstructorArgs)
	merged.Properties = mergeProperties(merged.Properties, child.Properties)
}

func mergeArgs(parent, child []ArgumentSpec) []ArgumentSpec {
	out := append([]ArgumentSpec(nil), parent...)
	for _, ca := range child {
		replaced := false
		for i, pa := range out {
			if pa.Index == ca.Index {
				out[i] = ca
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, ca)
		}
	}
	return out
}

func mergeProperties(parent, child []PropertySpec) []PropertySpec {
	out := append([]PropertySpec(nil), parent...)
	for _, cp := range child {
		replaced := false
		for i, pp := range out {
			if pp.Name == cp.Name {
				out[i] = cp
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, cp)
		}
	}
	return out
}
