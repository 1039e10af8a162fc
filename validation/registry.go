package validation

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xtanion/integration-sdks/engine"
	"github.com/xtanion/integration-sdks/pkg/logger"
)

// BuildFunc builds a validator for a pair of implementation guides.
type BuildFunc func(ctx context.Context, hcxBasePath, nrcesBasePath string) (*engine.Validator, error)

// Registry caches one validator per pair of implementation guides.
// Concurrent first requests for a pair share a single build; requests for
// other pairs are not blocked by it. Failed builds are not cached.
type Registry struct {
	build BuildFunc
	group singleflight.Group
	log   *zap.Logger

	mu         sync.RWMutex
	validators map[Key]*engine.Validator
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBuildFunc replaces the build step, by default a Builder's Build.
func WithBuildFunc(fn BuildFunc) RegistryOption {
	return func(r *Registry) { r.build = fn }
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates a Registry building with builder. A nil builder uses
// NewBuilder defaults.
func NewRegistry(builder *Builder, opts ...RegistryOption) *Registry {
	r := &Registry{validators: make(map[Key]*engine.Validator)}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Or(r.log, "validation")
	if r.build == nil {
		if builder == nil {
			builder = NewBuilder(WithLogger(r.log))
		}
		r.build = builder.Build
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(nil)
	})
	return defaultRegistry
}

// GetOrCreate returns the validator for the pair, building it on first use.
// The build runs detached from ctx, bounded by the fetcher timeout, so a
// caller that gives up does not fail the others waiting on the same pair.
// The finished validator is cached either way.
func (r *Registry) GetOrCreate(ctx context.Context, hcxBasePath, nrcesBasePath string) (*engine.Validator, error) {
	key := Key{HCX: hcxBasePath, NRCES: nrcesBasePath}
	if v, ok := r.lookup(key); ok {
		return v, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key.ID(), func() (any, error) {
		if v, ok := r.lookup(key); ok {
			return v, nil
		}
		v, err := r.build(buildCtx, hcxBasePath, nrcesBasePath)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.validators[key] = v
		r.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.log.Error("validator build failed",
				zap.String("hcx", hcxBasePath),
				zap.String("nrces", nrcesBasePath),
				zap.Bool("shared", res.Shared),
				zap.Error(res.Err))
			return nil, res.Err
		}
		return res.Val.(*engine.Validator), nil
	}
}

func (r *Registry) lookup(key Key) (*engine.Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[key]
	return v, ok
}

// Invalidate drops the validator of the pair, so the next request rebuilds.
func (r *Registry) Invalidate(hcxBasePath, nrcesBasePath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.validators, Key{HCX: hcxBasePath, NRCES: nrcesBasePath})
}

// Reset drops every cached validator.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators = make(map[Key]*engine.Validator)
}

// Len returns the number of cached validators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.validators)
}
