package market

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds all property listings in a thread-safe manner.
type Registry struct {
	mu       sync.RWMutex
	listings map[string]*Listing // propertyID -> listing
}

func NewRegistry() *Registry {
	return &Registry{listings: make(map[string]*Listing)}
}

// Register adds a listing. Returns an error if the property already exists.
func (r *Registry) Register(l *Listing) error {
	if l == nil {
		return fmt.Errorf("cannot register nil listing")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listings[l.PropertyID]; exists {
		return fmt.Errorf("listing %s already registered", l.PropertyID)
	}
	r.listings[l.PropertyID] = l
	return nil
}

// Get retrieves a listing by property ID.
func (r *Registry) Get(propertyID string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, exists := r.listings[propertyID]
	if !exists {
		return nil, fmt.Errorf("listing %s not found", propertyID)
	}
	return l, nil
}

// List returns all listings sorted by property ID for stable display.
func (r *Registry) List() []*Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PropertyID < out[j].PropertyID })
	return out
}

// UpdateStatus changes a listing's trading status. Delisted is terminal.
func (r *Registry) UpdateStatus(propertyID string, status ListingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, exists := r.listings[propertyID]
	if !exists {
		return fmt.Errorf("listing %s not found", propertyID)
	}
	if l.Status == Delisted {
		return fmt.Errorf("listing %s is delisted (terminal state)", propertyID)
	}
	l.Status = status
	return nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listings)
}
