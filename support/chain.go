package support

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofhir/fhir/r4"
)

// Chain consults its modules in order and returns the first answer.
// The order is fixed at construction.
type Chain struct {
	modules []Support
}

// NewChain creates a chain over modules. Nil modules are skipped.
func NewChain(modules ...Support) *Chain {
	c := &Chain{modules: make([]Support, 0, len(modules))}
	for _, m := range modules {
		if m != nil {
			c.modules = append(c.modules, m)
		}
	}
	return c
}

// Name implements Support.
func (c *Chain) Name() string { return "chain" }

// Modules returns the module names in consultation order.
func (c *Chain) Modules() []string {
	names := make([]string, len(c.modules))
	for i, m := range c.modules {
		names[i] = m.Name()
	}
	return names
}

// FetchStructureDefinition returns the first module's definition for url.
func (c *Chain) FetchStructureDefinition(ctx context.Context, url string) (*StructureDefinition, error) {
	return first(c.modules, func(m Support) (*StructureDefinition, error) {
		return m.FetchStructureDefinition(ctx, url)
	}, url)
}

// FetchValueSet returns the first module's value set for url.
func (c *Chain) FetchValueSet(ctx context.Context, url string) (*r4.ValueSet, error) {
	return first(c.modules, func(m Support) (*r4.ValueSet, error) {
		return m.FetchValueSet(ctx, url)
	}, url)
}

// FetchCodeSystem returns the first module's code system for url.
func (c *Chain) FetchCodeSystem(ctx context.Context, url string) (*r4.CodeSystem, error) {
	return first(c.modules, func(m Support) (*r4.CodeSystem, error) {
		return m.FetchCodeSystem(ctx, url)
	}, url)
}

// ValidateCode asks each module until one gives a verdict. A nil root
// means the chain itself.
func (c *Chain) ValidateCode(ctx context.Context, root Support, system, code, valueSetURL string) (*CodeResult, error) {
	if root == nil {
		root = c
	}
	for _, m := range c.modules {
		res, err := m.ValidateCode(ctx, root, system, code, valueSetURL)
		if err == nil && res != nil {
			if res.Source == "" {
				res.Source = m.Name()
			}
			return res, nil
		}
		if err != nil && !IsPass(err) {
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}
	}
	return nil, ErrNotSupported
}

func first[T any](modules []Support, fetch func(Support) (*T, error), url string) (*T, error) {
	for _, m := range modules {
		v, err := fetch(m)
		if err == nil && v != nil {
			return v, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
}
