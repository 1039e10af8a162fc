package phase

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/support"
)

// maxTypeDepth bounds descent into complex datatypes, which may nest
// themselves through extensions and references.
const maxTypeDepth = 8

// PrimitivePhase checks that primitive values have the lexical form of their
// declared FHIR type: ids, dates, uris, codes and so on. Values inside
// complex datatypes are checked when the support chain holds the datatype's
// definition. JSON kind mismatches of top-level elements are left to the
// structure phase.
type PrimitivePhase struct{}

// NewPrimitivePhase creates the phase.
func NewPrimitivePhase() *PrimitivePhase { return &PrimitivePhase{} }

func (p *PrimitivePhase) Name() string { return NamePrimitive }

func (p *PrimitivePhase) Validate(ctx context.Context, pctx *Context) []hcx.Issue {
	if ctx.Err() != nil || pctx.ResourceMap == nil || pctx.ResourceType == "" {
		return nil
	}
	w := &primitiveWalk{ctx: ctx, sup: pctx.Support, name: p.Name()}
	w.check(resourceElements(pctx), pctx.ResourceType, pctx.ResourceMap, pctx.ResourceType, 0)
	return w.issues
}

// resourceElements returns the unsliced elements of the base definition
// followed by those only the profile declares.
func resourceElements(pctx *Context) []support.ElementDefinition {
	var out []support.ElementDefinition
	seen := make(map[string]bool)
	for _, sd := range []*support.StructureDefinition{pctx.Base, pctx.Profile} {
		if sd == nil {
			continue
		}
		for _, el := range sd.Elements() {
			if isSlice(&el) || seen[el.Path] {
				continue
			}
			seen[el.Path] = true
			out = append(out, el)
		}
	}
	return out
}

type primitiveWalk struct {
	ctx    context.Context
	sup    support.Support
	name   string
	issues []hcx.Issue
}

// check validates the values below root against defs, whose paths start
// with typeName.
func (w *primitiveWalk) check(defs []support.ElementDefinition, typeName string, root map[string]any, rootPath string, depth int) {
	for _, def := range defs {
		if w.ctx.Err() != nil {
			return
		}
		if len(def.Types) == 0 || isSlice(&def) {
			continue
		}
		rel := strings.TrimPrefix(def.Path, typeName+".")
		if rel == def.Path {
			continue
		}

		for _, loc := range valuesAt(root, rootPath, rel) {
			code := elementType(&def, lastKey(loc.path))
			if code == "" || loc.value == nil {
				continue
			}
			if isPrimitiveType(code) {
				w.primitive(code, loc, depth == 0 && !strings.Contains(rel, "."))
				continue
			}
			if m, ok := loc.value.(map[string]any); ok {
				w.complex(code, m, loc.path, depth)
			}
		}
	}
}

func (w *primitiveWalk) primitive(code string, loc located, topLevel bool) {
	if !shapeMatches(code, loc.value) {
		if !topLevel {
			w.issues = append(w.issues, issue(hcx.SeverityError, hcx.IssueTypeValue, w.name, loc.path,
				fmt.Sprintf("Element has wrong type. Expected %s, got %s", code, jsonKind(loc.value))))
		}
		return
	}
	if msg := formatMismatch(code, loc.value); msg != "" {
		w.issues = append(w.issues, issue(hcx.SeverityError, hcx.IssueTypeValue, w.name, loc.path, msg))
		return
	}
	if s, ok := loc.value.(string); ok && code == "string" && s != strings.TrimSpace(s) {
		w.issues = append(w.issues, issue(hcx.SeverityWarning, hcx.IssueTypeValue, w.name, loc.path,
			"Value should not start or finish with whitespace"))
	}
}

// complex descends into a datatype or contained resource. Backbone elements
// are declared inline and already covered by the enclosing definitions.
func (w *primitiveWalk) complex(code string, value map[string]any, path string, depth int) {
	if w.sup == nil || depth >= maxTypeDepth {
		return
	}
	switch code {
	case "BackboneElement", "Element":
		return
	case "Resource", "DomainResource":
		rt, _ := value["resourceType"].(string)
		if rt == "" {
			return
		}
		code = rt
	}
	sd, err := w.sup.FetchStructureDefinition(w.ctx, support.CoreProfileURL(code))
	if err != nil || sd == nil {
		return
	}
	w.check(sd.Elements(), code, value, path, depth+1)
}

// elementType returns the type of the value under key. For choice elements
// the type is named by the key suffix.
func elementType(def *support.ElementDefinition, key string) string {
	name := def.Path[strings.LastIndex(def.Path, ".")+1:]
	base, choice := strings.CutSuffix(name, "[x]")
	for _, t := range def.Types {
		code := normalizeSystemType(t.Code)
		if !choice {
			return code
		}
		if strings.EqualFold(strings.TrimPrefix(key, base), code) {
			return code
		}
	}
	return ""
}

// lastKey returns the property name at the end of a location path.
func lastKey(path string) string {
	key := path[strings.LastIndex(path, ".")+1:]
	if idx := strings.Index(key, "["); idx != -1 {
		key = key[:idx]
	}
	return key
}

// normalizeSystemType maps FHIRPath system types used by R4 snapshots for
// id, extension url and primitive value elements to FHIR type codes.
func normalizeSystemType(code string) string {
	name, ok := strings.CutPrefix(code, "http://hl7.org/fhirpath/System.")
	if !ok {
		return code
	}
	switch name {
	case "String":
		return "string"
	case "Boolean":
		return "boolean"
	case "Integer":
		return "integer"
	case "Decimal":
		return "decimal"
	case "Date":
		return "date"
	case "DateTime":
		return "dateTime"
	case "Time":
		return "time"
	default:
		return ""
	}
}

func isPrimitiveType(code string) bool {
	switch code {
	case "boolean", "integer", "unsignedInt", "positiveInt", "decimal",
		"string", "uri", "url", "canonical", "code", "id", "oid", "uuid", "markdown",
		"base64Binary", "instant", "date", "dateTime", "time", "xhtml":
		return true
	}
	return false
}

// formatMismatch returns a message when value does not have the lexical
// form of code, or "" when it does. The JSON kind has already been checked.
func formatMismatch(code string, value any) string {
	switch code {
	case "integer":
		return intRange(value, -2147483648)
	case "unsignedInt":
		return intRange(value, 0)
	case "positiveInt":
		return intRange(value, 1)
	}

	s, ok := value.(string)
	if !ok {
		return ""
	}
	switch code {
	case "string", "markdown":
		if !utf8.ValidString(s) {
			return fmt.Sprintf("Value of type %s contains invalid UTF-8", code)
		}
	case "uri":
		if s == "" || strings.ContainsAny(s, " \t\n\r") {
			return fmt.Sprintf("Invalid uri '%s'", s)
		}
	case "url":
		if !urlRegex.MatchString(s) {
			return fmt.Sprintf("Invalid url '%s'", s)
		}
	case "canonical":
		if !canonicalRegex.MatchString(s) {
			return fmt.Sprintf("Invalid canonical '%s'", s)
		}
	case "code":
		if !codeRegex.MatchString(s) {
			return fmt.Sprintf("Invalid code '%s'", s)
		}
	case "id":
		if !idRegex.MatchString(s) {
			return fmt.Sprintf("Invalid id '%s': must match [A-Za-z0-9-.]{1,64}", s)
		}
	case "oid":
		if !oidRegex.MatchString(s) {
			return fmt.Sprintf("Invalid oid '%s': expected urn:oid:", s)
		}
	case "uuid":
		if !uuidRegex.MatchString(s) {
			return fmt.Sprintf("Invalid uuid '%s': expected urn:uuid:", s)
		}
	case "base64Binary":
		if _, err := base64.StdEncoding.DecodeString(s); err != nil {
			return fmt.Sprintf("Invalid base64Binary: %v", err)
		}
	case "instant":
		if !instantRegex.MatchString(s) {
			return fmt.Sprintf("Invalid instant '%s'", s)
		}
	case "date":
		if !dateRegex.MatchString(s) {
			return fmt.Sprintf("Invalid date '%s': expected YYYY, YYYY-MM or YYYY-MM-DD", s)
		}
	case "dateTime":
		if !dateTimeRegex.MatchString(s) {
			return fmt.Sprintf("Invalid dateTime '%s'", s)
		}
	case "time":
		if !timeRegex.MatchString(s) {
			return fmt.Sprintf("Invalid time '%s': expected HH:MM:SS", s)
		}
	case "xhtml":
		if !strings.HasPrefix(strings.TrimSpace(s), "<div") {
			return "xhtml must start with a <div> element"
		}
	}
	return ""
}

func intRange(value any, min int64) string {
	f, ok := value.(float64)
	if !ok {
		return ""
	}
	if i := int64(f); i < min || i > 2147483647 {
		return fmt.Sprintf("Value %d is out of range [%d, 2147483647]", i, min)
	}
	return ""
}

var (
	decimalRegex   = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)
	urlRegex       = regexp.MustCompile(`^\S+$`)
	canonicalRegex = regexp.MustCompile(`^\S+(\|\S+)?$`)
	codeRegex      = regexp.MustCompile(`^\S+( \S+)*$`)
	idRegex        = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)
	oidRegex       = regexp.MustCompile(`^urn:oid:[012](\.(0|[1-9]\d*))+$`)
	uuidRegex      = regexp.MustCompile(`^urn:uuid:[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	instantRegex   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])T([01]\d|2[0-3]):[0-5]\d:([0-5]\d|60)(\.\d+)?(Z|[+-]((0\d|1[0-3]):[0-5]\d|14:00))$`)
	dateRegex      = regexp.MustCompile(`^\d{4}(-(0[1-9]|1[0-2])(-(0[1-9]|[12]\d|3[01]))?)?$`)
	dateTimeRegex  = regexp.MustCompile(`^\d{4}(-(0[1-9]|1[0-2])(-(0[1-9]|[12]\d|3[01])(T([01]\d|2[0-3]):[0-5]\d:([0-5]\d|60)(\.\d+)?(Z|[+-]((0\d|1[0-3]):[0-5]\d|14:00))?)?)?)?$`)
	timeRegex      = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d:([0-5]\d|60)(\.\d+)?$`)
)
