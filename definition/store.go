package definition

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store 定义仓库
// 保存组件标识到模板的映射和别名表。冻结（首次实例化任何组件）后
// 仍允许结构性修改。每次定义或别名写入都会触发变更回调，让上层使
// 合并缓存失效：合并视图在冻结前就可能被元数据查询填充。
type Store struct {
	mu          sync.RWMutex
	definitions map[string]*ComponentDefinition
	aliases     map[string]string
	frozen      atomic.Bool

	changeMu sync.RWMutex
	onChange []func()
}

// NewStore 创建空的定义仓库
func NewStore() *Store {
	return &Store{
		definitions: make(map[string]*ComponentDefinition),
		aliases:     make(map[string]string),
	}
}

// OnChange 注册结构变更回调
// 任何定义或别名写入都会触发回调（用于缓存失效）。
func (s *Store) OnChange(fn func()) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Store) fireChange() {
	s.changeMu.RLock()
	defer s.changeMu.RUnlock()
	for _, fn := range s.onChange {
		fn()
	}
}

// RegisterDefinition 注册或覆盖组件定义
func (s *Store) RegisterDefinition(def *ComponentDefinition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("ioc: definition must have a name")
	}

	s.mu.Lock()
	if _, shadowed := s.aliases[def.Name]; shadowed {
		s.mu.Unlock()
		return fmt.Errorf("ioc: component name %q conflicts with a registered alias", def.Name)
	}
	s.definitions[def.Name] = def
	s.mu.Unlock()

	s.fireChange()
	return nil
}

// RegisterAlias 注册别名
// 别名在查找时传递解析；注册时校验自引用与环。
func (s *Store) RegisterAlias(alias, target string) error {
	if alias == "" || target == "" {
		return &AliasError{Alias: alias, Target: target, Reason: "empty name"}
	}
	if alias == target {
		return &AliasError{Alias: alias, Target: target, Reason: "alias refers to itself"}
	}

	s.mu.Lock()
	if _, exists := s.definitions[alias]; exists {
		s.mu.Unlock()
		return &AliasError{Alias: alias, Target: target, Reason: "alias shadows an existing definition"}
	}
	// 沿 target 的别名链走到底，若回到 alias 则成环
	seen := target
	for {
		next, ok := s.aliases[seen]
		if !ok {
			break
		}
		if next == alias {
			s.mu.Unlock()
			return &AliasError{Alias: alias, Target: target, Reason: "alias chain would be cyclic"}
		}
		seen = next
	}
	s.aliases[alias] = target
	s.mu.Unlock()

	s.fireChange()
	return nil
}

// ResolveAlias 传递解析别名，返回规范标识
// 输入不是别名时原样返回。
func (s *Store) ResolveAlias(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		target, ok := s.aliases[name]
		if !ok {
			return name
		}
		name = target
	}
}

// Definition 返回未合并的原始定义
func (s *Store) Definition(name string) (*ComponentDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.definitions[name]
	return def, ok
}

// Contains 判断标识（别名解析后）是否有定义
func (s *Store) Contains(name string) bool {
	canonical := s.ResolveAlias(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.definitions[canonical]
	return ok
}

// Names 返回所有已注册的组件标识
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.definitions))
	for name := range s.definitions {
		names = append(names, name)
	}
	return names
}

// Freeze 冻结仓库，此后结构性修改触发变更回调
func (s *Store) Freeze() {
	s.frozen.Store(true)
}

// Unfreeze 解除冻结（容器重置时调用）
func (s *Store) Unfreeze() {
	s.frozen.Store(false)
}

// Frozen 返回是否已冻结
func (s *Store) Frozen() bool {
	return s.frozen.Load()
}
