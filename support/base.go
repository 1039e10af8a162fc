package support

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofhir/fhir/r4"
	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/pkg/logger"
	"github.com/xtanion/integration-sdks/specs"
)

// BaseDefinitions serves the core FHIR R4 definitions embedded in the
// specs package. They are parsed on first use.
type BaseDefinitions struct {
	once  sync.Once
	store *PrePopulated
	err   error
	log   *zap.Logger
}

// NewBaseDefinitions creates the module. A nil logger uses the package default.
func NewBaseDefinitions(log *zap.Logger) *BaseDefinitions {
	return &BaseDefinitions{log: logger.Or(log, "support")}
}

// Name implements Support.
func (b *BaseDefinitions) Name() string { return "base-definitions" }

// Load parses the embedded files. It is called implicitly by every fetch.
func (b *BaseDefinitions) Load() error {
	b.once.Do(func() {
		store := NewPrePopulated(b.Name())
		for _, name := range []string{specs.ProfilesResources, specs.ValueSets} {
			data, err := specs.ReadFile(name)
			if err != nil {
				b.err = err
				return
			}
			n, err := store.AddResource(data)
			if err != nil {
				b.err = fmt.Errorf("%s: %w", name, err)
				return
			}
			b.log.Debug("loaded base definitions", zap.String("file", name), zap.Int("count", n))
		}
		b.store = store
	})
	return b.err
}

func (b *BaseDefinitions) FetchStructureDefinition(ctx context.Context, url string) (*StructureDefinition, error) {
	if err := b.Load(); err != nil {
		return nil, err
	}
	return b.store.FetchStructureDefinition(ctx, url)
}

func (b *BaseDefinitions) FetchValueSet(ctx context.Context, url string) (*r4.ValueSet, error) {
	if err := b.Load(); err != nil {
		return nil, err
	}
	return b.store.FetchValueSet(ctx, url)
}

func (b *BaseDefinitions) FetchCodeSystem(ctx context.Context, url string) (*r4.CodeSystem, error) {
	if err := b.Load(); err != nil {
		return nil, err
	}
	return b.store.FetchCodeSystem(ctx, url)
}

// ValidateCode always defers.
func (b *BaseDefinitions) ValidateCode(context.Context, Support, string, string, string) (*CodeResult, error) {
	return nil, ErrNotSupported
}
