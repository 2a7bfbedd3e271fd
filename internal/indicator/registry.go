package indicator

import (
	"sync"

	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// Registry manages all available indicator computers.
type Registry interface {
	Register(computer Computer) error
	Get(name types.IndicatorType) (Computer, error)
	List() []types.IndicatorType
	Remove(name types.IndicatorType) error
}

// RegistryV1 manages all available indicator computers.
type RegistryV1 struct {
	computers map[types.IndicatorType]Computer
	mu        sync.RWMutex
}

// NewRegistry creates a new indicator registry.
func NewRegistry() Registry {
	return &RegistryV1{
		computers: make(map[types.IndicatorType]Computer),
		mu:        sync.RWMutex{},
	}
}

// Register adds an indicator computer to the registry.
func (r *RegistryV1) Register(computer Computer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := computer.Name()
	if _, exists := r.computers[name]; exists {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "Register: indicator with name %s already registered", name)
	}

	r.computers[name] = computer

	return nil
}

// Get retrieves an indicator computer by name.
func (r *RegistryV1) Get(name types.IndicatorType) (Computer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	computer, exists := r.computers[name]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "Get: indicator with name %s not found", name)
	}

	return computer, nil
}

// List returns a list of all registered indicator names.
func (r *RegistryV1) List() []types.IndicatorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]types.IndicatorType, 0, len(r.computers))
	for name := range r.computers {
		names = append(names, name)
	}

	return names
}

// Remove removes an indicator computer from the registry.
func (r *RegistryV1) Remove(name types.IndicatorType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.computers[name]; !exists {
		return errors.Newf(errors.ErrCodeIndicatorNotFound, "Remove: indicator with name %s not found", name)
	}

	delete(r.computers, name)

	return nil
}
