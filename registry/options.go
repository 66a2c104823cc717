package registry

import (
	"go.uber.org/zap"

	"github.com/gocrud/ioc/event"
)

// Option 注册中心配置选项
type Option func(*Registry)

// WithLogger 设置结构化日志器，默认 zap.NewNop()
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEventBus 挂接事件总线，生命周期通知将发布到这里
func WithEventBus(bus *event.Bus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

// WithMetadataCapacity 设置结构元数据缓存的容量，默认 256
func WithMetadataCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.metaCapacity = n
		}
	}
}
