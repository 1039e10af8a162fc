package support

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/gofhir/fhir/r4"
)

// InMemoryTerminology validates codes by expanding value sets in memory.
// Definitions are fetched through the root support, so the value sets and
// code systems can live in any module of the chain. Expansions are cached
// per value set URL.
type InMemoryTerminology struct {
	mu         sync.RWMutex
	expansions map[string]*expansion
}

// expansion is the flattened content of one value set.
type expansion struct {
	codes map[string]map[string]string // system -> code -> display
	// unresolved lists included systems whose content could not be fetched.
	unresolved map[string]bool
}

func newExpansion() *expansion {
	return &expansion{
		codes:      make(map[string]map[string]string),
		unresolved: make(map[string]bool),
	}
}

func (e *expansion) add(system, code, display string) {
	if e.codes[system] == nil {
		e.codes[system] = make(map[string]string)
	}
	e.codes[system][code] = display
}

func (e *expansion) remove(system, code string) {
	delete(e.codes[system], code)
}

// lookup finds code, optionally restricted to system.
func (e *expansion) lookup(system, code string) (string, string, bool) {
	if system != "" {
		display, ok := e.codes[system][code]
		return system, display, ok
	}
	for sys, codes := range e.codes {
		if display, ok := codes[code]; ok {
			return sys, display, true
		}
	}
	return "", "", false
}

// NewInMemoryTerminology creates the module with an empty expansion cache.
func NewInMemoryTerminology() *InMemoryTerminology {
	return &InMemoryTerminology{expansions: make(map[string]*expansion)}
}

// Name implements Support.
func (t *InMemoryTerminology) Name() string { return "in-memory-terminology" }

func (t *InMemoryTerminology) FetchStructureDefinition(context.Context, string) (*StructureDefinition, error) {
	return nil, ErrNotFound
}

func (t *InMemoryTerminology) FetchValueSet(context.Context, string) (*r4.ValueSet, error) {
	return nil, ErrNotFound
}

func (t *InMemoryTerminology) FetchCodeSystem(context.Context, string) (*r4.CodeSystem, error) {
	return nil, ErrNotFound
}

// ValidateCode checks code against the expansion of valueSetURL, or against
// the code system when no value set is given.
func (t *InMemoryTerminology) ValidateCode(ctx context.Context, root Support, system, code, valueSetURL string) (*CodeResult, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if root == nil {
		root = t
	}

	if valueSetURL == "" {
		return t.validateInSystem(ctx, root, system, code)
	}

	exp, err := t.expand(ctx, root, valueSetURL)
	if err != nil {
		return nil, err
	}

	sys, display, ok := exp.lookup(system, code)
	if ok {
		return &CodeResult{Valid: true, System: sys, Code: code, Display: display}, nil
	}
	if exp.unresolved[system] || (system == "" && len(exp.unresolved) > 0) {
		return nil, ErrNotSupported
	}
	return &CodeResult{
		Valid:   false,
		System:  system,
		Code:    code,
		Message: fmt.Sprintf("code '%s' is not in ValueSet '%s'", code, valueSetURL),
	}, nil
}

func (t *InMemoryTerminology) validateInSystem(ctx context.Context, root Support, system, code string) (*CodeResult, error) {
	if system == "" {
		return nil, ErrNotSupported
	}
	cs, err := root.FetchCodeSystem(ctx, system)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotSupported
		}
		return nil, err
	}

	exp := newExpansion()
	addConcepts(exp, system, cs.Concept)
	if _, display, ok := exp.lookup(system, code); ok {
		return &CodeResult{Valid: true, System: system, Code: code, Display: display}, nil
	}
	return &CodeResult{
		Valid:   false,
		System:  system,
		Code:    code,
		Message: fmt.Sprintf("code '%s' is not defined in CodeSystem '%s'", code, system),
	}, nil
}

// expand returns the cached expansion for url, computing it once.
func (t *InMemoryTerminology) expand(ctx context.Context, root Support, url string) (*expansion, error) {
	key := Canonical(url)

	t.mu.RLock()
	exp, ok := t.expansions[key]
	t.mu.RUnlock()
	if ok {
		return exp, nil
	}

	vs, err := root.FetchValueSet(ctx, key)
	if err != nil {
		return nil, err
	}
	exp, err = t.build(ctx, root, vs)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cached, ok := t.expansions[key]; ok {
		return cached, nil
	}
	t.expansions[key] = exp
	return exp, nil
}

func (t *InMemoryTerminology) build(ctx context.Context, root Support, vs *r4.ValueSet) (*expansion, error) {
	exp := newExpansion()

	// A published expansion wins over the compose.
	if vs.Expansion != nil && len(vs.Expansion.Contains) > 0 {
		addContains(exp, vs.Expansion.Contains)
		return exp, nil
	}
	if vs.Compose == nil {
		return exp, nil
	}

	for i := range vs.Compose.Include {
		if err := t.apply(ctx, root, exp, &vs.Compose.Include[i], exp.add); err != nil {
			return nil, err
		}
	}

	excluded := newExpansion()
	for i := range vs.Compose.Exclude {
		if err := t.apply(ctx, root, excluded, &vs.Compose.Exclude[i], excluded.add); err != nil {
			return nil, err
		}
	}
	for system, codes := range excluded.codes {
		for code := range codes {
			exp.remove(system, code)
		}
	}
	return exp, nil
}

// apply resolves one include or exclude clause into emit.
func (t *InMemoryTerminology) apply(ctx context.Context, root Support, exp *expansion, inc *r4.ValueSetComposeInclude, emit func(system, code, display string)) error {
	if inc.System == nil {
		return nil
	}
	system := *inc.System

	for i := range inc.Concept {
		c := &inc.Concept[i]
		if c.Code == nil {
			continue
		}
		emit(system, *c.Code, deref(c.Display))
	}
	if len(inc.Concept) > 0 && len(inc.Filter) == 0 {
		return nil
	}

	cs, err := root.FetchCodeSystem(ctx, system)
	if err != nil {
		if IsPass(err) {
			exp.unresolved[system] = true
			return nil
		}
		return err
	}

	content := loadCodeSystem(cs)
	if len(inc.Filter) == 0 {
		for code, display := range content.codes {
			emit(system, code, display)
		}
		return nil
	}
	for i := range inc.Filter {
		f := &inc.Filter[i]
		if f.Property == nil || f.Op == nil || f.Value == nil {
			continue
		}
		for _, code := range content.filter(*f.Property, string(*f.Op), *f.Value) {
			emit(system, code, content.codes[code])
		}
	}
	return nil
}

// codeSystemContent is a code system flattened for filtering.
type codeSystemContent struct {
	codes    map[string]string
	children map[string][]string
}

func loadCodeSystem(cs *r4.CodeSystem) *codeSystemContent {
	c := &codeSystemContent{
		codes:    make(map[string]string),
		children: make(map[string][]string),
	}
	c.walk("", cs.Concept)
	return c
}

func (c *codeSystemContent) walk(parent string, concepts []r4.CodeSystemConcept) {
	for i := range concepts {
		concept := &concepts[i]
		if concept.Code == nil {
			continue
		}
		code := *concept.Code
		c.codes[code] = deref(concept.Display)
		if parent != "" {
			c.children[parent] = append(c.children[parent], code)
		}
		for _, prop := range concept.Property {
			if prop.Code != nil && *prop.Code == "subsumedBy" && prop.ValueCode != nil {
				c.children[*prop.ValueCode] = append(c.children[*prop.ValueCode], code)
			}
		}
		c.walk(code, concept.Concept)
	}
}

func (c *codeSystemContent) filter(property, op, value string) []string {
	switch {
	case property == "concept" && (op == "is-a" || op == "descendent-of"):
		return c.descendants(value, op == "is-a")
	case property == "code" && op == "regex":
		re, err := regexp.Compile("^(?:" + value + ")$")
		if err != nil {
			return nil
		}
		var out []string
		for code := range c.codes {
			if re.MatchString(code) {
				out = append(out, code)
			}
		}
		return out
	case property == "code" && op == "=":
		if _, ok := c.codes[value]; ok {
			return []string{value}
		}
	}
	return nil
}

// descendants walks the hierarchy below start. Abstract codes, which by
// convention start with an underscore, are skipped.
func (c *codeSystemContent) descendants(start string, includeSelf bool) []string {
	var out []string
	seen := make(map[string]bool)
	var visit func(code string)
	visit = func(code string) {
		if seen[code] {
			return
		}
		seen[code] = true
		if (includeSelf || code != start) && code != "" && code[0] != '_' {
			out = append(out, code)
		}
		for _, child := range c.children[code] {
			visit(child)
		}
	}
	visit(start)
	return out
}

func addContains(exp *expansion, contains []r4.ValueSetExpansionContains) {
	for i := range contains {
		c := &contains[i]
		if c.Code != nil && c.System != nil {
			exp.add(*c.System, *c.Code, deref(c.Display))
		}
		addContains(exp, c.Contains)
	}
}

func addConcepts(exp *expansion, system string, concepts []r4.CodeSystemConcept) {
	for i := range concepts {
		c := &concepts[i]
		if c.Code != nil {
			exp.add(system, *c.Code, deref(c.Display))
		}
		addConcepts(exp, system, c.Concept)
	}
}

// Reset drops cached expansions.
func (t *InMemoryTerminology) Reset() {
	t.mu.Lock()
	t.expansions = make(map[string]*expansion)
	t.mu.Unlock()
}
