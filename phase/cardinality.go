package phase

import (
	"context"
	"fmt"
	"strconv"

	hcx "github.com/xtanion/integration-sdks"
)

// CardinalityPhase checks element min and max. Children of optional
// elements are only required when the parent is present.
type CardinalityPhase struct{}

func NewCardinalityPhase() *CardinalityPhase { return &CardinalityPhase{} }

func (p *CardinalityPhase) Name() string { return NameCardinality }

func (p *CardinalityPhase) Validate(ctx context.Context, pctx *Context) []hcx.Issue {
	if pctx.ResourceMap == nil {
		return nil
	}

	var issues []hcx.Issue
	for _, def := range pctx.Elements() {
		if ctx.Err() != nil {
			return issues
		}
		rel := pctx.RelativePath(def.Path)
		if rel == "" {
			continue
		}

		max, unbounded := parseMax(def.Max)
		if def.Min == 0 && unbounded {
			continue
		}

		parentRel, name := splitParent(rel)
		for _, parent := range valuesAt(pctx.ResourceMap, pctx.ResourceType, parentRel) {
			m, ok := parent.value.(map[string]any)
			if !ok {
				continue
			}
			count := countAt(m, name)
			path := parent.path + "." + name

			if count < def.Min {
				issues = append(issues, issue(hcx.SeverityError, hcx.IssueTypeRequired, p.Name(), path,
					fmt.Sprintf("Element '%s' is required (min=%d) but has %d occurrence(s)", def.Path, def.Min, count)))
			}
			if !unbounded && count > max {
				issues = append(issues, issue(hcx.SeverityError, hcx.IssueTypeStructure, p.Name(), path,
					fmt.Sprintf("Element '%s' exceeds max cardinality %s (found %d)", def.Path, def.Max, count)))
			}
		}
	}
	return issues
}

// parseMax reads an element max. "*" and unparseable values are unbounded.
func parseMax(s string) (int, bool) {
	if s == "" || s == "*" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true
	}
	return n, false
}
