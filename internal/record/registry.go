package record

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownType is returned when a (namespace, name) pair is not registered.
var ErrUnknownType = errors.New("unknown record type")

// Registry maps (namespace, name) to record descriptors. It is populated at
// startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]*Descriptor
	byTable map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:   make(map[string]*Descriptor),
		byTable: make(map[string]*Descriptor),
	}
}

// Register validates d and adds it. Registering the same key twice is an error.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.init(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.types[d.Key()]; dup {
		return fmt.Errorf("record type %s already registered", d.Key())
	}
	r.types[d.Key()] = d
	r.byTable[d.Table] = d
	return nil
}

// MustRegister is Register for package init code.
func (r *Registry) MustRegister(ds ...*Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup resolves a type case-insensitively.
func (r *Registry) Lookup(namespace, name string) (*Descriptor, error) {
	key := strings.ToLower(namespace) + "." + strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, key)
	}
	return d, nil
}

// LookupRef resolves a Ref.
func (r *Registry) LookupRef(ref Ref) (*Descriptor, error) {
	return r.Lookup(ref.Namespace, ref.Name)
}

// ByTable returns the descriptor owning table, if any.
func (r *Registry) ByTable(table string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byTable[table]
	return d, ok
}

// All returns the descriptors sorted by key.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.types))
	for _, d := range r.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
