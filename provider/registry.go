package provider

import (
	"sort"
	"strings"
	"sync"
)

// FactoryTable manages the gateway factories that can be built from configuration
type FactoryTable struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewFactoryTable creates an empty factory table
func NewFactoryTable() *FactoryTable {
	return &FactoryTable{
		factories: make(map[string]Factory),
	}
}

// Register adds a gateway factory under a case-insensitive name
func (t *FactoryTable) Register(name string, factory Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[strings.ToLower(name)] = factory
}

// Get retrieves a gateway factory by name
func (t *FactoryTable) Get(name string) (Factory, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	factory, exists := t.factories[strings.ToLower(strings.TrimSpace(name))]
	if !exists {
		return nil, &UnsupportedProviderError{Key: name, Supported: t.namesLocked()}
	}
	return factory, nil
}

// Names returns the sorted names of all registered factories
func (t *FactoryTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.namesLocked()
}

func (t *FactoryTable) namesLocked() []string {
	names := make([]string, 0, len(t.factories))
	for name := range t.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFactories is the global factory table populated by the adapter packages' init functions
var DefaultFactories = NewFactoryTable()

// Register registers a gateway factory with the default table
func Register(name string, factory Factory) {
	DefaultFactories.Register(name, factory)
}

// Registry resolves provider keys to configured gateway instances.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	gateways map[string]Gateway
	names    []string
}

// NewRegistry builds a registry from already constructed gateways.
// Keys are the lowercased ProviderID of each gateway.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		key := strings.ToLower(gw.ProviderID())
		if key == "" {
			return nil, ConfigError("", "gateway with empty provider id")
		}
		if _, dup := r.gateways[key]; dup {
			return nil, ConfigError(key, "provider registered twice")
		}
		r.gateways[key] = gw
		r.names = append(r.names, key)
	}
	sort.Strings(r.names)
	return r, nil
}

// Build constructs every configured gateway through the factory table.
// configs maps a provider name to its flat configuration.
func (t *FactoryTable) Build(configs map[string]map[string]string) (*Registry, error) {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	gateways := make([]Gateway, 0, len(names))
	for _, name := range names {
		factory, err := t.Get(name)
		if err != nil {
			return nil, err
		}
		conf, err := ParseConfig(name, configs[name])
		if err != nil {
			return nil, err
		}
		gw, err := factory(conf)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	return NewRegistry(gateways...)
}

// Build constructs a registry using the default factory table
func Build(configs map[string]map[string]string) (*Registry, error) {
	return DefaultFactories.Build(configs)
}

// Resolve returns the gateway registered under key, matched case-insensitively
func (r *Registry) Resolve(key string) (Gateway, error) {
	gw, ok := r.gateways[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, &UnsupportedProviderError{Key: key, Supported: r.Providers()}
	}
	return gw, nil
}

// Providers returns the sorted keys of all configured gateways
func (r *Registry) Providers() []string {
	return append([]string(nil), r.names...)
}
