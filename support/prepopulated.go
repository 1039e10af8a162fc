package support

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofhir/fhir/r4"
)

// PrePopulated serves definitions added to it explicitly, typically the
// profiles and value sets of downloaded implementation-guide bundles.
// Adding a definition whose URL is already present replaces it.
type PrePopulated struct {
	name string

	mu          sync.RWMutex
	profiles    map[string]*StructureDefinition
	valueSets   map[string]*r4.ValueSet
	codeSystems map[string]*r4.CodeSystem
}

// NewPrePopulated creates an empty module.
func NewPrePopulated(name string) *PrePopulated {
	if name == "" {
		name = "prepopulated"
	}
	return &PrePopulated{
		name:        name,
		profiles:    make(map[string]*StructureDefinition),
		valueSets:   make(map[string]*r4.ValueSet),
		codeSystems: make(map[string]*r4.CodeSystem),
	}
}

// Name implements Support.
func (p *PrePopulated) Name() string { return p.name }

// AddStructureDefinition registers sd under its URL.
func (p *PrePopulated) AddStructureDefinition(sd *StructureDefinition) error {
	if sd == nil || sd.URL == "" {
		return fmt.Errorf("support: structure definition has no url")
	}
	p.mu.Lock()
	p.profiles[Canonical(sd.URL)] = sd
	p.mu.Unlock()
	return nil
}

// AddValueSet registers vs under its URL.
func (p *PrePopulated) AddValueSet(vs *r4.ValueSet) error {
	if vs == nil || vs.Url == nil || *vs.Url == "" {
		return fmt.Errorf("support: value set has no url")
	}
	p.mu.Lock()
	p.valueSets[Canonical(*vs.Url)] = vs
	p.mu.Unlock()
	return nil
}

// AddCodeSystem registers cs under its URL.
func (p *PrePopulated) AddCodeSystem(cs *r4.CodeSystem) error {
	if cs == nil || cs.Url == nil || *cs.Url == "" {
		return fmt.Errorf("support: code system has no url")
	}
	p.mu.Lock()
	p.codeSystems[Canonical(*cs.Url)] = cs
	p.mu.Unlock()
	return nil
}

// Counts returns how many profiles, value sets and code systems are held.
func (p *PrePopulated) Counts() (profiles, valueSets, codeSystems int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.profiles), len(p.valueSets), len(p.codeSystems)
}

func (p *PrePopulated) FetchStructureDefinition(ctx context.Context, url string) (*StructureDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if sd, ok := p.profiles[Canonical(url)]; ok {
		return sd, nil
	}
	return nil, ErrNotFound
}

func (p *PrePopulated) FetchValueSet(ctx context.Context, url string) (*r4.ValueSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if vs, ok := p.valueSets[Canonical(url)]; ok {
		return vs, nil
	}
	return nil, ErrNotFound
}

func (p *PrePopulated) FetchCodeSystem(ctx context.Context, url string) (*r4.CodeSystem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cs, ok := p.codeSystems[Canonical(url)]; ok {
		return cs, nil
	}
	return nil, ErrNotFound
}

// ValidateCode always defers; terminology modules evaluate the value sets
// this module holds.
func (p *PrePopulated) ValidateCode(context.Context, Support, string, string, string) (*CodeResult, error) {
	return nil, ErrNotSupported
}
