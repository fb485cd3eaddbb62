package tts

import (
	"sync"

	"github.com/voxweave/voxweave/internal/apperr"
)

// displayOrder is the fixed order providers appear in listings, independent
// of registration order.
var displayOrder = []Name{NameGoogle, NameAmazon, NameElevenLabs, NameOpenAI}

// Names returns the known provider names in display order.
func Names() []Name {
	out := make([]Name, len(displayOrder))
	copy(out, displayOrder)
	return out
}

// Registry holds the set of known providers. Lookups by unknown name return
// INVALID_PROVIDER; configuration state is the provider's own concern.
type Registry struct {
	mu        sync.RWMutex
	providers map[Name]Provider
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Name]Provider)}
}

// Register adds or replaces a provider under its own name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name Name) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, apperr.InvalidProvider(string(name))
	}
	return p, nil
}

// List returns all registered providers in display order. Providers outside
// the known set are appended at the end in registration-map order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	seen := make(map[Name]bool, len(r.providers))
	for _, name := range displayOrder {
		if p, ok := r.providers[name]; ok {
			out = append(out, p)
			seen[name] = true
		}
	}
	for name, p := range r.providers {
		if !seen[name] {
			out = append(out, p)
		}
	}
	return out
}
