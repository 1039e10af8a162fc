// Package component resolves request-handling implementations by name.
//
// Implementations register a factory under a symbolic name at startup. A
// configuration key may then name one of them to replace a built-in default;
// lookups that fail for any reason fall back to the default.
package component

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/pkg/logger"
)

var (
	// ErrEmptyName is returned when registering a factory without a name.
	ErrEmptyName = errors.New("component: empty name")

	// ErrNilFactory is returned when registering a nil factory.
	ErrNilFactory = errors.New("component: nil factory")

	// ErrConflictingRegistration is returned when a name is already bound.
	ErrConflictingRegistration = errors.New("component: conflicting registration")

	// ErrUnknownComponent is returned by Build for names never registered.
	ErrUnknownComponent = errors.New("component: unknown component")

	// ErrNilComponent is returned by Build when a factory yields nil.
	ErrNilComponent = errors.New("component: factory returned nil")
)

// Factory constructs a component. It may pull shared dependencies from the
// injector with do.Invoke.
type Factory func(i do.Injector) (any, error)

// Registry maps names to factories. Each Build runs the factory again, so
// callers never share a component instance.
type Registry struct {
	mu       sync.RWMutex
	injector *do.RootScope
	names    map[string]struct{}
	log      *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates an empty registry with its own injector.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		injector: do.New(),
		names:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Or(r.log, "component")
	return r
}

// Injector exposes the scope factories are invoked with, so hosts can
// provide shared values (config, HTTP clients) before resolving.
func (r *Registry) Injector() do.Injector {
	return r.injector
}

// Register binds name to f. A name is bound once; registering it again
// fails whatever the factory.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return ErrEmptyName
	}
	if f == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrConflictingRegistration, name)
	}

	do.ProvideNamedTransient(r.injector, name, func(i do.Injector) (any, error) {
		return f(i)
	})
	r.names[name] = struct{}{}
	return nil
}

// MustRegister is Register that panics on error, for use in init paths.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Build constructs a fresh instance of the named component. A panicking
// factory is reported as an error.
func (r *Registry) Build(name string) (v any, err error) {
	if !r.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}

	defer func() {
		if p := recover(); p != nil {
			v = nil
			err = fmt.Errorf("component: %s panicked: %v", name, p)
		}
	}()

	v, err = do.InvokeNamed[any](r.injector, name)
	if err != nil {
		return nil, err
	}
	if isNil(v) {
		return nil, fmt.Errorf("%w: %s", ErrNilComponent, name)
	}
	return v, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// TypeName returns the package-qualified name of v's concrete type, e.g.
// "github.com/xtanion/integration-sdks/request.HCXOutgoing". It is the
// conventional name to register a component under.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
