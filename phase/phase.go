// Package phase implements the validation phases run by the engine.
//
// Each phase checks one aspect of a resource against its profile and
// returns issues. Phases are stateless; everything they need is in the
// Context, so one phase value may validate many resources concurrently.
package phase

import (
	"context"
	"strings"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/support"
)

// Phase names.
const (
	NameStructure    = "structure"
	NamePrimitive    = "primitive"
	NameCardinality  = "cardinality"
	NameFixedPattern = "fixed-pattern"
	NameBinding      = "binding"
	NameConstraints  = "constraints"
)

// Phase is one validation step.
type Phase interface {
	Name() string
	Validate(ctx context.Context, pctx *Context) []hcx.Issue
}

// Func adapts a function to Phase.
type Func struct {
	name string
	fn   func(ctx context.Context, pctx *Context) []hcx.Issue
}

// NewFunc creates a Phase from fn.
func NewFunc(name string, fn func(ctx context.Context, pctx *Context) []hcx.Issue) Phase {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Validate(ctx context.Context, pctx *Context) []hcx.Issue {
	return f.fn(ctx, pctx)
}

// Context is the state shared by the phases for one resource.
type Context struct {
	Resource     []byte
	ResourceMap  map[string]any
	ResourceType string

	// Profile is the StructureDefinition the resource is checked against.
	Profile *support.StructureDefinition

	// Base is the core definition of ResourceType. It equals Profile when
	// no other profile applies and may be nil when unavailable.
	Base *support.StructureDefinition

	Support support.Support
	Options *hcx.Options
}

// Elements returns the profile's unsliced element definitions.
func (c *Context) Elements() []support.ElementDefinition {
	if c.Profile == nil {
		return nil
	}
	all := c.Profile.Elements()
	out := make([]support.ElementDefinition, 0, len(all))
	for _, el := range all {
		if isSlice(&el) {
			continue
		}
		out = append(out, el)
	}
	return out
}

// RelativePath strips the resource type from an element path. The root
// element yields "".
func (c *Context) RelativePath(path string) string {
	if path == c.ResourceType {
		return ""
	}
	return strings.TrimPrefix(path, c.ResourceType+".")
}

// Opts returns the options, or the defaults when unset.
func (c *Context) Opts() *hcx.Options {
	if c.Options == nil {
		c.Options = hcx.DefaultOptions()
	}
	return c.Options
}

func isSlice(el *support.ElementDefinition) bool {
	return el.SliceName != "" || strings.Contains(el.ID, ":")
}

func issue(severity hcx.IssueSeverity, code hcx.IssueType, phase, path, msg string) hcx.Issue {
	return hcx.NewIssue(severity, code).Diagnostics(msg).At(path).Phase(phase).Build()
}
