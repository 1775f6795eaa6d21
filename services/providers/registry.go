package providers

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry holds the adapter instance for each provider, built once at startup
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderID]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderID]Provider),
	}
}

// RegisterProvider registers a provider instance
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	id := provider.ID()
	if !id.IsKnown() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.providers[id] = provider
	return nil
}

// GetProvider retrieves a provider by id
func (r *Registry) GetProvider(id ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[id]
	if !exists {
		return nil, ErrProviderNotFound
	}

	return provider, nil
}

// ListProviders returns registered provider ids in Known order
func (r *Registry) ListProviders() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ProviderID, 0, len(r.providers))
	for _, id := range Known {
		if _, ok := r.providers[id]; ok {
			ids = append(ids, id)
		}
	}

	return ids
}

// GetProviderCount returns the number of registered providers
func (r *Registry) GetProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// ProviderBuilder is a function that creates a provider instance
type ProviderBuilder func(config ProviderConfig) (Provider, error)

// RegistryBuilder helps build a registry with multiple providers
type RegistryBuilder struct {
	registry *Registry
	builders map[ProviderID]ProviderBuilder
	wrappers []func(Provider) Provider
}

// NewRegistryBuilder creates a new registry builder
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		registry: NewRegistry(),
		builders: make(map[ProviderID]ProviderBuilder),
	}
}

// WithProviderBuilder registers a provider builder
func (rb *RegistryBuilder) WithProviderBuilder(id ProviderID, builder ProviderBuilder) *RegistryBuilder {
	rb.builders[id] = builder
	return rb
}

// WithWrapper decorates every built provider, e.g. with a FaultInjector
func (rb *RegistryBuilder) WithWrapper(wrap func(Provider) Provider) *RegistryBuilder {
	rb.wrappers = append(rb.wrappers, wrap)
	return rb
}

// Build creates providers in Known order and returns the registry.
// Providers without credentials are still registered so the router can
// report them as CredentialMissing instead of silently dropping them.
func (rb *RegistryBuilder) Build(configs map[ProviderID]ProviderConfig) (*Registry, error) {
	for _, id := range Known {
		config, ok := configs[id]
		if !ok {
			continue
		}
		builder, exists := rb.builders[id]
		if !exists {
			continue
		}

		provider, err := builder(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build provider %s: %w", id, err)
		}
		for _, wrap := range rb.wrappers {
			provider = wrap(provider)
		}
		if err := rb.registry.RegisterProvider(provider); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", id, err)
		}
	}

	return rb.registry, nil
}
