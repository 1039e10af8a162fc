package phase

import (
	"context"
	"fmt"
	"reflect"

	hcx "github.com/xtanion/integration-sdks"
)

// FixedPatternPhase checks fixed[x] (exact) and pattern[x] (subset) values.
type FixedPatternPhase struct{}

func NewFixedPatternPhase() *FixedPatternPhase { return &FixedPatternPhase{} }

func (p *FixedPatternPhase) Name() string { return NameFixedPattern }

func (p *FixedPatternPhase) Validate(ctx context.Context, pctx *Context) []hcx.Issue {
	var issues []hcx.Issue
	for _, def := range pctx.Elements() {
		if ctx.Err() != nil {
			return issues
		}
		if def.Fixed == nil && def.Pattern == nil {
			continue
		}
		rel := pctx.RelativePath(def.Path)
		if rel == "" {
			continue
		}

		for _, loc := range valuesAt(pctx.ResourceMap, pctx.ResourceType, rel) {
			if def.Fixed != nil && !reflect.DeepEqual(loc.value, def.Fixed) {
				issues = append(issues, issue(hcx.SeverityError, hcx.IssueTypeValue, p.Name(), loc.path,
					fmt.Sprintf("Value does not match fixed value %s", compact(def.Fixed))))
			}
			if def.Pattern != nil && !matchesPattern(loc.value, def.Pattern) {
				issues = append(issues, issue(hcx.SeverityError, hcx.IssueTypeValue, p.Name(), loc.path,
					fmt.Sprintf("Value does not match pattern %s", compact(def.Pattern))))
			}
		}
	}
	return issues
}

// matchesPattern reports whether value contains everything in pattern.
// Objects match field by field; every pattern array item must match some
// value array item.
func matchesPattern(value, pattern any) bool {
	switch pat := pattern.(type) {
	case nil:
		return true
	case map[string]any:
		m, ok := value.(map[string]any)
		if !ok {
			return false
		}
		for key, pv := range pat {
			v, exists := m[key]
			if !exists || !matchesPattern(v, pv) {
				return false
			}
		}
		return true
	case []any:
		arr, ok := value.([]any)
		if !ok {
			return false
		}
		for _, pi := range pat {
			found := false
			for _, vi := range arr {
				if matchesPattern(vi, pi) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(value, pattern)
	}
}

func compact(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + x + "'"
	default:
		return fmt.Sprintf("%v", x)
	}
}
