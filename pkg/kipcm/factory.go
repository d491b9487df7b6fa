package kipcm

import (
	"fmt"
	"sort"
	"strings"
)

// FactoryHandle is returned by FactoryRegister and names a registered factory.
type FactoryHandle struct {
	name string
	ops  Factory
	refs int // live instances created by this factory
}

func (h *FactoryHandle) Name() string { return h.name }

type factoryRegistry struct {
	byName map[string]*FactoryHandle
}

func newFactoryRegistry() (*factoryRegistry, error) {
	return &factoryRegistry{byName: make(map[string]*FactoryHandle)}, nil
}

func (r *factoryRegistry) register(name string, ops Factory) (*FactoryHandle, error) {
	name = strings.TrimSpace(name)
	if name == "" || ops == nil {
		return nil, fmt.Errorf("%w: factory name and ops required", ErrInvalidArgument)
	}
	if _, dup := r.byName[name]; dup {
		return nil, fmt.Errorf("factory %q: %w", name, ErrDuplicateFactory)
	}
	h := &FactoryHandle{name: name, ops: ops}
	r.byName[name] = h
	return h, nil
}

func (r *factoryRegistry) unregister(h *FactoryHandle) error {
	if h == nil {
		return fmt.Errorf("%w: nil factory handle", ErrInvalidArgument)
	}
	cur, ok := r.byName[h.name]
	if !ok || cur != h {
		return fmt.Errorf("factory %q: %w", h.name, ErrFactoryNotFound)
	}
	if h.refs > 0 {
		return fmt.Errorf("factory %q (%d instances): %w", h.name, h.refs, ErrFactoryInUse)
	}
	delete(r.byName, h.name)
	return nil
}

func (r *factoryRegistry) find(name string) *FactoryHandle {
	return r.byName[name]
}

func (r *factoryRegistry) names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// fini drops every registration. Factories are owned by their registrants.
func (r *factoryRegistry) fini() error {
	clear(r.byName)
	return nil
}
