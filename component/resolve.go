package component

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// ErrWrongType is the fallback cause when a component does not implement
// the requested capability.
var ErrWrongType = errors.New("component: does not implement requested interface")

// Lookup is the configuration view Resolve needs.
type Lookup interface {
	Has(key string) bool
	GetString(key string) string
}

// ResolutionError describes why a configured component was not used.
// Resolve only logs it.
type ResolutionError struct {
	Key  string
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("component %q from %s could not be used: %v", e.Name, e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolve returns the component named by cfg[key] when it is registered,
// constructs cleanly and implements T. Otherwise it logs the reason and
// returns def(). It never fails.
func Resolve[T any](r *Registry, cfg Lookup, key string, def func() T) T {
	v, err := TryResolve[T](r, cfg, key)
	if err == nil {
		return v
	}
	if !errors.Is(err, errNotConfigured) {
		r.log.Warn("Request class provided in the config map does not exist, hence default is used",
			zap.String("key", key),
			zap.Stringer("capability", reflect.TypeOf((*T)(nil)).Elem()),
			zap.Error(err),
		)
	}
	return def()
}

var errNotConfigured = errors.New("component: key not configured")

// TryResolve is Resolve without the fallback. It returns a
// *ResolutionError when the configured component cannot be used.
func TryResolve[T any](r *Registry, cfg Lookup, key string) (T, error) {
	var zero T
	if r == nil || cfg == nil || !cfg.Has(key) {
		return zero, errNotConfigured
	}

	name := cfg.GetString(key)
	v, err := r.Build(name)
	if err != nil {
		return zero, &ResolutionError{Key: key, Name: name, Err: err}
	}

	inst, ok := v.(T)
	if !ok {
		return zero, &ResolutionError{
			Key:  key,
			Name: name,
			Err:  fmt.Errorf("%w: got %T", ErrWrongType, v),
		}
	}

	r.log.Info("Request class resolved from the config map", zap.String("key", key), zap.String("name", name))
	return inst, nil
}
