package provider

import (
	"fmt"
	"sync"
)

// Factory 构造一个未初始化的网关实例
type Factory func() Gateway

var (
	// factories 存储所有已注册的网关工厂
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register 注册一个网关工厂,各适配器在 init() 中调用
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if factory == nil {
		panic("provider: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("provider: Register called twice for driver " + name)
	}
	factories[name] = factory
}

// New 根据驱动名构造网关实例
func New(name string) (Gateway, error) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("provider driver %s not found", name)
	}
	return factory(), nil
}

// ListDrivers 列出所有已注册的驱动名称
func ListDrivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// UnregisterAll 清空所有已注册的工厂 (用于测试)
func UnregisterAll() {
	mu.Lock()
	defer mu.Unlock()
	factories = make(map[string]Factory)
}
