// Package ioc 是一个组件生命周期运行时。
//
// 给定一组声明式组件模板，它解析模板间的继承、按需实例化组件、
// 执行作用域规则（每容器一个 / 每次请求一个）、检测并报告依赖环、
// 让注册的钩子在既定的生命周期点观察和改写组件，并把类型化通知
// 路由给感兴趣的观察者。
//
// 各包职责：
//
//   - definition: 组件模板、定义仓库（含别名表）与父链合并器
//   - registry:   注册中心门面、单例缓存与创建算法、钩子流水线
//   - event:      类型感知的事件总线
//   - metadata:   有界 LRU 结构元数据缓存
//   - source:     YAML 模板前端（引擎对模板格式本身不可知）
//
// 最简用法：
//
//	r := ioc.New()
//	r.RegisterDefinition(&definition.ComponentDefinition{
//		Name:    "repo",
//		Factory: NewRepo,
//	})
//	repo, err := ioc.Resolve[*Repo](r, "repo")
//
// 单例创建在一个容器代内恰好一次，不相关标识的创建完全并行；
// 构造期循环依赖会被检测并报告完整的环，链上任一条边改用
// definition.DeferredRef 即可打破环。
package ioc
