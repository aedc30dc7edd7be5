package adapters

import (
	"fmt"
	"sort"
	"sync"
)

// Builder creates an adapter from runtime configuration
type Builder func(cfg AdapterConfig) (Adapter, error)

// AdapterWithInfo pairs a builder with its static bidder info
type AdapterWithInfo struct {
	Build Builder
	Info  BidderInfo
}

// Registry holds the bidder adapters known to the host
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]AdapterWithInfo
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]AdapterWithInfo)}
}

// DefaultRegistry is populated by adapter packages in init
var DefaultRegistry = NewRegistry()

// Register adds a bidder. Registering a code twice is an error.
func (r *Registry) Register(code string, build Builder, info BidderInfo) error {
	if code == "" {
		return fmt.Errorf("adapters: empty bidder code")
	}
	if build == nil {
		return fmt.Errorf("adapters: nil builder for %s", code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[code]; exists {
		return fmt.Errorf("adapters: bidder %s already registered", code)
	}
	r.adapters[code] = AdapterWithInfo{Build: build, Info: info}
	return nil
}

// Get returns a registered bidder
func (r *Registry) Get(code string) (AdapterWithInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[code]
	return a, ok
}

// List returns the registered bidder codes in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Build builds the adapter registered under code
func (r *Registry) Build(code string, cfg AdapterConfig) (Adapter, BidderInfo, error) {
	a, ok := r.Get(code)
	if !ok {
		return nil, BidderInfo{}, fmt.Errorf("adapters: unknown bidder %s", code)
	}
	if cfg.Disabled || !a.Info.Enabled {
		return nil, a.Info, fmt.Errorf("adapters: bidder %s is disabled", code)
	}
	adapter, err := a.Build(cfg)
	if err != nil {
		return nil, a.Info, fmt.Errorf("adapters: building %s: %w", code, err)
	}
	return adapter, a.Info, nil
}

// RegisterAdapter registers a bidder in the default registry
func RegisterAdapter(code string, build Builder, info BidderInfo) error {
	return DefaultRegistry.Register(code, build, info)
}
