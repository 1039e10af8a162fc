// Package profile loads the StructureDefinition and ValueSet files of an
// extracted implementation-guide bundle.
//
// A bundle directory is flat. Files are classified by name prefix:
//
//	StructureDefinition*  parsed as a StructureDefinition
//	ValueSet*             parsed as a ValueSet
//
// Everything else, including sub-directories, is ignored. A file that fails
// to parse aborts the whole load; an incomplete profile set would let
// invalid documents pass.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofhir/fhir/r4"
	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/pkg/logger"
	"github.com/xtanion/integration-sdks/support"
)

// File name prefixes.
const (
	PrefixStructureDefinition = "StructureDefinition"
	PrefixValueSet            = "ValueSet"
)

// Kind is the kind of a loaded definition.
type Kind int

const (
	KindStructureDefinition Kind = iota
	KindValueSet
)

func (k Kind) String() string {
	switch k {
	case KindStructureDefinition:
		return "StructureDefinition"
	case KindValueSet:
		return "ValueSet"
	default:
		return "unknown"
	}
}

// Definition is one parsed file.
type Definition struct {
	File      string
	Kind      Kind
	Structure *support.StructureDefinition // set for KindStructureDefinition
	ValueSet  *r4.ValueSet                 // set for KindValueSet
}

// URL returns the canonical URL of the definition.
func (d *Definition) URL() string {
	switch d.Kind {
	case KindStructureDefinition:
		return d.Structure.URL
	case KindValueSet:
		if d.ValueSet.Url != nil {
			return *d.ValueSet.Url
		}
	}
	return ""
}

// Set is the result of loading one directory.
type Set struct {
	Dir         string
	definitions []*Definition
}

// Definitions returns every definition ordered by file name.
func (s *Set) Definitions() []*Definition { return s.definitions }

// Len returns the number of definitions.
func (s *Set) Len() int { return len(s.definitions) }

// StructureDefinitions returns the structure definitions ordered by file name.
func (s *Set) StructureDefinitions() []*support.StructureDefinition {
	var out []*support.StructureDefinition
	for _, d := range s.definitions {
		if d.Kind == KindStructureDefinition {
			out = append(out, d.Structure)
		}
	}
	return out
}

// ValueSets returns the value sets ordered by file name.
func (s *Set) ValueSets() []*r4.ValueSet {
	var out []*r4.ValueSet
	for _, d := range s.definitions {
		if d.Kind == KindValueSet {
			out = append(out, d.ValueSet)
		}
	}
	return out
}

// AddTo registers every definition with p.
func (s *Set) AddTo(p *support.PrePopulated) error {
	for _, d := range s.definitions {
		var err error
		switch d.Kind {
		case KindStructureDefinition:
			err = p.AddStructureDefinition(d.Structure)
		case KindValueSet:
			err = p.AddValueSet(d.ValueSet)
		}
		if err != nil {
			return &ParseError{File: d.File, Err: err}
		}
	}
	return nil
}

// Loader reads bundle directories.
type Loader struct {
	log *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.log = l }
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	l.log = logger.Or(l.log, "profile")
	return l
}

// Load parses the files directly under dir.
func (l *Loader) Load(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile directory %s: %w", dir, err)
	}

	set := &Set{Dir: dir}
	skipped := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			skipped++
			continue
		}

		var kind Kind
		switch {
		case strings.HasPrefix(name, PrefixStructureDefinition):
			kind = KindStructureDefinition
		case strings.HasPrefix(name, PrefixValueSet):
			kind = KindValueSet
		default:
			skipped++
			continue
		}

		def, err := parseFile(filepath.Join(dir, name), kind)
		if err != nil {
			return nil, err
		}
		set.definitions = append(set.definitions, def)
	}

	l.log.Debug("loaded profiles",
		zap.String("dir", dir),
		zap.Int("structureDefinitions", len(set.StructureDefinitions())),
		zap.Int("valueSets", len(set.ValueSets())),
		zap.Int("skipped", skipped))
	return set, nil
}

func parseFile(path string, kind Kind) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: path, Err: err}
	}

	rt, err := support.ResourceType(data)
	if err != nil {
		return nil, &ParseError{File: path, Err: err}
	}
	if rt != kind.String() {
		return nil, &ParseError{File: path, Err: fmt.Errorf("%w: expected %s, got %s", ErrResourceType, kind, rt)}
	}

	def := &Definition{File: path, Kind: kind}
	switch kind {
	case KindStructureDefinition:
		var sd r4.StructureDefinition
		if err := json.Unmarshal(data, &sd); err != nil {
			return nil, &ParseError{File: path, Err: err}
		}
		def.Structure = support.FromR4(&sd)
	case KindValueSet:
		var vs r4.ValueSet
		if err := json.Unmarshal(data, &vs); err != nil {
			return nil, &ParseError{File: path, Err: err}
		}
		def.ValueSet = &vs
	}
	return def, nil
}
