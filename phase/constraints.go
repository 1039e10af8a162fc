package phase

import (
	"context"
	"fmt"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/support"
)

// ConstraintsPhase evaluates the FHIRPath invariants of the profile.
// Root invariants run against the whole resource, element invariants
// against each instance of the element.
type ConstraintsPhase struct {
	evaluator *Evaluator
}

// NewConstraintsPhase creates the phase. A nil evaluator gets a fresh one.
func NewConstraintsPhase(evaluator *Evaluator) *ConstraintsPhase {
	if evaluator == nil {
		evaluator = NewEvaluator()
	}
	return &ConstraintsPhase{evaluator: evaluator}
}

func (p *ConstraintsPhase) Name() string { return NameConstraints }

func (p *ConstraintsPhase) Validate(ctx context.Context, pctx *Context) []hcx.Issue {
	if pctx.ResourceMap == nil || !pctx.Opts().ValidateConstraints {
		return nil
	}

	var issues []hcx.Issue
	for _, def := range pctx.Elements() {
		if ctx.Err() != nil {
			return issues
		}
		if len(def.Constraints) == 0 {
			continue
		}

		rel := pctx.RelativePath(def.Path)
		var nodes []located
		if rel == "" {
			nodes = []located{{path: pctx.ResourceType, value: pctx.ResourceMap}}
		} else {
			nodes = valuesAt(pctx.ResourceMap, pctx.ResourceType, rel)
		}

		for _, node := range nodes {
			for i := range def.Constraints {
				c := &def.Constraints[i]
				if issue, failed := p.evaluate(c, node, rel == "", pctx.Resource); failed {
					issues = append(issues, issue)
				}
			}
		}
	}
	return issues
}

func (p *ConstraintsPhase) evaluate(c *support.Constraint, node located, root bool, raw []byte) (hcx.Issue, bool) {
	if c.Expression == "" {
		return hcx.Issue{}, false
	}

	var (
		satisfied bool
		err       error
	)
	switch {
	case wellKnown(c.Key):
		satisfied = evaluateWellKnown(c.Key, node.value)
	case root && len(raw) > 0:
		satisfied, err = p.evaluator.Evaluate(c.Expression, raw)
	default:
		// Primitive values carry no children to navigate.
		if _, ok := node.value.(map[string]any); !ok {
			return hcx.Issue{}, false
		}
		satisfied, err = p.evaluator.Evaluate(c.Expression, node.value)
	}

	if err != nil {
		return issue(hcx.SeverityWarning, hcx.IssueTypeProcessing, p.Name(), node.path,
			fmt.Sprintf("Error evaluating constraint %s: %v (expression: %s)", c.Key, err, c.Expression)), true
	}
	if satisfied {
		return hcx.Issue{}, false
	}

	severity := hcx.SeverityError
	if c.Severity == "warning" {
		severity = hcx.SeverityWarning
	}
	msg := fmt.Sprintf("Constraint %s violated (expression: %s)", c.Key, c.Expression)
	if c.Human != "" {
		msg = fmt.Sprintf("Constraint %s violated: %s", c.Key, c.Human)
	}
	return hcx.NewIssue(severity, hcx.IssueTypeInvariant).
		Diagnostics(msg).
		At(node.path).
		Phase(p.Name()).
		Constraint(c.Key).
		Build(), true
}

// ele-1 and ext-1 appear on nearly every element and are checked directly.
func wellKnown(key string) bool {
	return key == "ele-1" || key == "ext-1"
}

func evaluateWellKnown(key string, value any) bool {
	switch key {
	case "ele-1":
		switch v := value.(type) {
		case nil:
			return true
		case map[string]any:
			return len(v) > 0
		case []any:
			return len(v) > 0
		default:
			return true
		}
	case "ext-1":
		m, ok := value.(map[string]any)
		if !ok {
			return true
		}
		_, hasExt := m["extension"]
		hasValue := false
		for k := range m {
			if isChoiceOf(k, "value") {
				hasValue = true
				break
			}
		}
		return hasExt != hasValue
	}
	return true
}
