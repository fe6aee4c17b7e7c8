package operation

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/flemzord/opsgate/internal/permission"
)

// Registry errors.
var (
	// ErrNotFound is returned when an operation is not registered.
	ErrNotFound = errors.New("operation not found")

	// ErrDuplicate is returned when registering a name that already exists.
	ErrDuplicate = errors.New("operation already registered")

	// ErrEmptyName is returned when an operation descriptor has no name.
	ErrEmptyName = errors.New("operation name must not be empty")

	// ErrBadDescriptor is returned for descriptors violating schema
	// invariants (unknown kinds, required arguments with defaults).
	ErrBadDescriptor = errors.New("invalid operation descriptor")
)

// Registry holds registered operations by name. It is instance-based
// (no globals) for clean concurrent testing with distinct catalogs per
// test. Registration happens once at process start; lookups afterwards
// are read-only and safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// Register adds an operation. The descriptor's name must be unique and
// non-empty, every argument kind known, and every optional argument
// carrying a default (possibly nil is fine — the field just must not
// be required while also declaring one).
func (r *Registry) Register(op Operation) error {
	d := op.Descriptor()
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return ErrEmptyName
	}
	for _, arg := range d.Arguments {
		if !ValidKind(arg.Kind) {
			return fmt.Errorf("%w: %s: argument %q has unknown kind %q",
				ErrBadDescriptor, name, arg.Name, arg.Kind)
		}
		if arg.Required && arg.Default != nil {
			return fmt.Errorf("%w: %s: required argument %q declares a default",
				ErrBadDescriptor, name, arg.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.ops[name] = op
	return nil
}

// Get returns the operation with the given name, or ErrNotFound.
func (r *Registry) Get(name string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return op, nil
}

// Names returns all registered operation names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ListFor returns the operations visible to the given profile, sorted
// by name for stable output: everything under the wildcard, otherwise
// only the profile's allowed subset.
func (r *Registry) ListFor(profile permission.Profile) []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Operation, 0, len(r.ops))
	for name, op := range r.ops {
		if profile.Allows(name) {
			out = append(out, op)
		}
	}
	slices.SortFunc(out, func(a, b Operation) int {
		return cmp.Compare(a.Descriptor().Name, b.Descriptor().Name)
	})
	return out
}
