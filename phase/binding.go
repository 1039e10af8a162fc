package phase

import (
	"context"
	"fmt"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/support"
)

// BindingPhase checks coded values against their value set bindings.
// A code outside a required binding is an error and outside an extensible
// binding a warning. Preferred and example bindings are not checked.
// A CodeableConcept passes when any of its codings does.
type BindingPhase struct{}

func NewBindingPhase() *BindingPhase { return &BindingPhase{} }

func (p *BindingPhase) Name() string { return NameBinding }

func (p *BindingPhase) Validate(ctx context.Context, pctx *Context) []hcx.Issue {
	if pctx.Support == nil || !pctx.Opts().ValidateTerminology {
		return nil
	}

	var issues []hcx.Issue
	for _, def := range pctx.Elements() {
		if ctx.Err() != nil {
			return issues
		}
		b := def.Binding
		if b == nil || b.ValueSet == "" {
			continue
		}
		var severity hcx.IssueSeverity
		switch b.Strength {
		case support.StrengthRequired:
			severity = hcx.SeverityError
		case support.StrengthExtensible:
			severity = hcx.SeverityWarning
		default:
			continue
		}
		rel := pctx.RelativePath(def.Path)
		if rel == "" {
			continue
		}

		for _, loc := range valuesAt(pctx.ResourceMap, pctx.ResourceType, rel) {
			issues = append(issues, p.check(ctx, pctx, loc, b, severity)...)
		}
	}
	return issues
}

type coding struct {
	system, code string
}

// codings extracts the codes of a code, Coding or CodeableConcept value.
func codings(v any) []coding {
	switch x := v.(type) {
	case string:
		return []coding{{code: x}}
	case map[string]any:
		if list, ok := x["coding"].([]any); ok {
			var out []coding
			for _, item := range list {
				out = append(out, codings(item)...)
			}
			return out
		}
		code, _ := x["code"].(string)
		if code == "" {
			return nil
		}
		system, _ := x["system"].(string)
		return []coding{{system: system, code: code}}
	}
	return nil
}

func (p *BindingPhase) check(ctx context.Context, pctx *Context, loc located, b *support.Binding, severity hcx.IssueSeverity) []hcx.Issue {
	codes := codings(loc.value)
	if len(codes) == 0 {
		// A CodeableConcept with text only satisfies extensible bindings.
		if m, ok := loc.value.(map[string]any); ok && m["text"] != nil && b.Strength == support.StrengthExtensible {
			return nil
		}
		if _, ok := loc.value.(map[string]any); ok {
			return []hcx.Issue{issue(severity, hcx.IssueTypeCodeInvalid, p.Name(), loc.path,
				fmt.Sprintf("No code provided, and a code is expected from the ValueSet '%s'", b.ValueSet))}
		}
		return nil
	}

	var unchecked error
	for _, c := range codes {
		res, err := pctx.Support.ValidateCode(ctx, nil, c.system, c.code, b.ValueSet)
		if err != nil {
			if support.IsPass(err) {
				unchecked = err
				continue
			}
			return []hcx.Issue{issue(hcx.SeverityError, hcx.IssueTypeProcessing, p.Name(), loc.path,
				fmt.Sprintf("Error validating code against ValueSet '%s': %v", b.ValueSet, err))}
		}
		if res == nil || res.Valid {
			return nil
		}
	}
	if unchecked != nil {
		return []hcx.Issue{issue(hcx.SeverityWarning, hcx.IssueTypeNotSupported, p.Name(), loc.path,
			fmt.Sprintf("Unable to validate code against ValueSet '%s': %v", b.ValueSet, unchecked))}
	}

	c := codes[0]
	msg := fmt.Sprintf("The code '%s' is not in the ValueSet '%s' (%s binding)", c.code, b.ValueSet, b.Strength)
	if c.system != "" {
		msg = fmt.Sprintf("The code '%s#%s' is not in the ValueSet '%s' (%s binding)", c.system, c.code, b.ValueSet, b.Strength)
	}
	if len(codes) > 1 {
		msg = fmt.Sprintf("None of the %d codings are in the ValueSet '%s' (%s binding)", len(codes), b.ValueSet, b.Strength)
	}
	return []hcx.Issue{issue(severity, hcx.IssueTypeCodeInvalid, p.Name(), loc.path, msg)}
}
