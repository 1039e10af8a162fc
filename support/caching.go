package support

import (
	"context"

	"github.com/gofhir/fhir/r4"

	"github.com/xtanion/integration-sdks/cache"
)

// DefaultCacheSize bounds each of the caching decorator's caches.
const DefaultCacheSize = 5000

// CachingSupport memoises successful lookups of the wrapped support.
// Misses and errors are never cached.
type CachingSupport struct {
	inner Support

	profiles    *cache.Cache[string, *StructureDefinition]
	valueSets   *cache.Cache[string, *r4.ValueSet]
	codeSystems *cache.Cache[string, *r4.CodeSystem]
	codes       *cache.Cache[string, *CodeResult]
}

// NewCachingSupport wraps inner. A non-positive size uses DefaultCacheSize.
func NewCachingSupport(inner Support, size int, opts ...cache.Option) *CachingSupport {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachingSupport{
		inner:       inner,
		profiles:    cache.New[string, *StructureDefinition](size, opts...),
		valueSets:   cache.New[string, *r4.ValueSet](size, opts...),
		codeSystems: cache.New[string, *r4.CodeSystem](size, opts...),
		codes:       cache.New[string, *CodeResult](size, opts...),
	}
}

// Name implements Support.
func (c *CachingSupport) Name() string { return "caching(" + c.inner.Name() + ")" }

// Inner returns the wrapped support.
func (c *CachingSupport) Inner() Support { return c.inner }

func (c *CachingSupport) FetchStructureDefinition(ctx context.Context, url string) (*StructureDefinition, error) {
	return c.profiles.GetOrLoad(url, func() (*StructureDefinition, error) {
		return c.inner.FetchStructureDefinition(ctx, url)
	})
}

func (c *CachingSupport) FetchValueSet(ctx context.Context, url string) (*r4.ValueSet, error) {
	return c.valueSets.GetOrLoad(url, func() (*r4.ValueSet, error) {
		return c.inner.FetchValueSet(ctx, url)
	})
}

func (c *CachingSupport) FetchCodeSystem(ctx context.Context, url string) (*r4.CodeSystem, error) {
	return c.codeSystems.GetOrLoad(url, func() (*r4.CodeSystem, error) {
		return c.inner.FetchCodeSystem(ctx, url)
	})
}

// ValidateCode caches verdicts by system, code and value set. The wrapper
// becomes the root so nested fetches are cached too.
func (c *CachingSupport) ValidateCode(ctx context.Context, root Support, system, code, valueSetURL string) (*CodeResult, error) {
	if root == nil {
		root = c
	}
	key := system + "|" + code + "|" + valueSetURL
	return c.codes.GetOrLoad(key, func() (*CodeResult, error) {
		return c.inner.ValidateCode(ctx, root, system, code, valueSetURL)
	})
}

// Stats reports per-cache counters keyed by cache name.
func (c *CachingSupport) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"profiles":    c.profiles.Stats(),
		"valueSets":   c.valueSets.Stats(),
		"codeSystems": c.codeSystems.Stats(),
		"codes":       c.codes.Stats(),
	}
}

// Clear drops every cached entry.
func (c *CachingSupport) Clear() {
	c.profiles.Clear()
	c.valueSets.Clear()
	c.codeSystems.Clear()
	c.codes.Clear()
}
