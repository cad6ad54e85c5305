package xevent

import (
	"errors"
	"sync"
)

// StrategyFactory constructs dispatch strategies from a config blob.
type StrategyFactory func(cfg map[string]any) (DispatchStrategy, error)

var (
	strategyRegistryMu sync.RWMutex
	strategyRegistry   = map[string]StrategyFactory{
		"callback": func(map[string]any) (DispatchStrategy, error) { return CallbackStrategy{}, nil },
		"handler":  func(map[string]any) (DispatchStrategy, error) { return HandlerStrategy{}, nil },
	}
)

// RegisterStrategy registers a strategy factory by name.
func RegisterStrategy(name string, factory StrategyFactory) error {
	if name == "" {
		return errors.New("strategy name must not be empty")
	}
	if factory == nil {
		return errors.New("strategy factory must not be nil")
	}
	strategyRegistryMu.Lock()
	strategyRegistry[name] = factory
	strategyRegistryMu.Unlock()
	return nil
}

// NewStrategy constructs a strategy by name with config.
func NewStrategy(name string, cfg map[string]any) (DispatchStrategy, error) {
	strategyRegistryMu.RLock()
	f, ok := strategyRegistry[name]
	strategyRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownStrategy{name: name}
	}
	return f(cfg)
}
