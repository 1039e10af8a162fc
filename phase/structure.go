package phase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/support"
)

// StructurePhase checks the top level of a resource: every property must be
// an element of the resource type and hold a value of the declared shape.
// Nested content is left to the other phases.
type StructurePhase struct{}

// NewStructurePhase creates the phase.
func NewStructurePhase() *StructurePhase { return &StructurePhase{} }

func (p *StructurePhase) Name() string { return NameStructure }

func (p *StructurePhase) Validate(ctx context.Context, pctx *Context) []hcx.Issue {
	if ctx.Err() != nil {
		return nil
	}
	if pctx.ResourceType == "" {
		return []hcx.Issue{issue(hcx.SeverityError, hcx.IssueTypeRequired, p.Name(),
			"resourceType", "Resource must have a resourceType")}
	}

	defs := p.topLevel(pctx)
	if len(defs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(pctx.ResourceMap))
	for k := range pctx.ResourceMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var issues []hcx.Issue
	for _, key := range keys {
		if key == "resourceType" {
			continue
		}
		path := pctx.ResourceType + "." + key

		// _foo carries id and extensions of primitive foo.
		name := strings.TrimPrefix(key, "_")
		def, ok := lookupTopLevel(defs, name)
		if !ok {
			severity := hcx.SeverityError
			if !pctx.Opts().RejectUnknownElements {
				severity = hcx.SeverityWarning
			}
			issues = append(issues, issue(severity, hcx.IssueTypeStructure, p.Name(), path,
				fmt.Sprintf("Unknown element '%s'", key)))
			continue
		}
		if key != name {
			continue
		}
		for _, loc := range expand(path, pctx.ResourceMap[key]) {
			if msg := typeMismatch(def, name, loc.value); msg != "" {
				issues = append(issues, issue(hcx.SeverityError, hcx.IssueTypeValue, p.Name(), loc.path, msg))
			}
		}
	}
	return issues
}

// topLevel indexes the direct children of the resource from the base
// definition, falling back to the profile. Profiles without a snapshot only
// list the elements they change.
func (p *StructurePhase) topLevel(pctx *Context) map[string]*support.ElementDefinition {
	index := make(map[string]*support.ElementDefinition)
	for _, sd := range []*support.StructureDefinition{pctx.Base, pctx.Profile} {
		if sd == nil {
			continue
		}
		if sd != pctx.Base && len(sd.Snapshot) == 0 && len(index) == 0 {
			continue
		}
		elements := sd.Elements()
		for i := range elements {
			el := &elements[i]
			if isSlice(el) {
				continue
			}
			rel := pctx.RelativePath(el.Path)
			if rel == "" || strings.Contains(rel, ".") {
				continue
			}
			if _, seen := index[rel]; !seen {
				index[rel] = el
			}
		}
	}
	return index
}

func lookupTopLevel(defs map[string]*support.ElementDefinition, key string) (*support.ElementDefinition, bool) {
	if def, ok := defs[key]; ok {
		return def, true
	}
	for name, def := range defs {
		if base, ok := strings.CutSuffix(name, "[x]"); ok && isChoiceOf(key, base) {
			return def, true
		}
	}
	return nil, false
}

// typeMismatch returns a message when value cannot be any of the element's
// types, or "" when it fits.
func typeMismatch(def *support.ElementDefinition, key string, value any) string {
	if len(def.Types) == 0 {
		return ""
	}

	var expected []string
	for _, t := range def.Types {
		code := t.Code
		// For choice elements only the type named by the key applies.
		if base, ok := strings.CutSuffix(def.Path[strings.LastIndex(def.Path, ".")+1:], "[x]"); ok {
			if !strings.EqualFold(strings.TrimPrefix(key, base), code) {
				continue
			}
		}
		if shapeMatches(code, value) {
			return ""
		}
		expected = append(expected, code)
	}
	if len(expected) == 0 {
		return fmt.Sprintf("Element '%s' has an unsupported type", key)
	}
	return fmt.Sprintf("Element has wrong type. Expected one of %v, got %s", expected, jsonKind(value))
}

func shapeMatches(fhirType string, value any) bool {
	kind := jsonKind(value)
	switch fhirType {
	case "boolean":
		return kind == "boolean"
	case "integer", "unsignedInt", "positiveInt":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "decimal":
		return kind == "number"
	case "string", "uri", "url", "canonical", "code", "id", "oid", "uuid",
		"markdown", "base64Binary", "xhtml", "date", "dateTime", "time", "instant":
		return kind == "string"
	default:
		// Complex types, including Resource for contained.
		return kind == "object"
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
