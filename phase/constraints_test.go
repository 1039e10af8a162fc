package phase

import (
	"context"
	"testing"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/support"
)

func constrainedProfile(rootConstraints []support.Constraint, nameConstraints []support.Constraint) *support.StructureDefinition {
	return &support.StructureDefinition{
		URL:  support.CoreProfileURL("Patient"),
		Type: "Patient",
		Snapshot: []support.ElementDefinition{
			{ID: "Patient", Path: "Patient", Max: "*", Constraints: rootConstraints},
			{ID: "Patient.name", Path: "Patient.name", Max: "*", Constraints: nameConstraints},
		},
	}
}

func TestConstraintsPhase_NilResourceMap(t *testing.T) {
	p := NewConstraintsPhase(nil)
	issues := p.Validate(context.Background(), &Context{ResourceType: "Patient"})
	if len(issues) != 0 {
		t.Errorf("Expected 0 issues for nil resource map, got %d", len(issues))
	}
}

func TestConstraintsPhase_Root(t *testing.T) {
	profile := constrainedProfile([]support.Constraint{
		{Key: "pat-x", Severity: "error", Human: "Patient must have a name", Expression: "name.exists()"},
		{Key: "pat-y", Severity: "warning", Expression: "birthDate.exists()"},
	}, nil)

	tests := []struct {
		name     string
		resource string
		keys     []string
		severity []hcx.IssueSeverity
	}{
		{
			name:     "satisfied",
			resource: `{"resourceType": "Patient", "name": [{"family": "Rao"}], "birthDate": "1990-01-01"}`,
		},
		{
			name:     "error and warning",
			resource: `{"resourceType": "Patient", "active": true}`,
			keys:     []string{"pat-x", "pat-y"},
			severity: []hcx.IssueSeverity{hcx.SeverityError, hcx.SeverityWarning},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pctx := newTestContext(t, tt.resource, profile)
			issues := NewConstraintsPhase(nil).Validate(context.Background(), pctx)

			if len(issues) != len(tt.keys) {
				t.Fatalf("Expected %d issues, got %d: %v", len(tt.keys), len(issues), issues)
			}
			for i, iss := range issues {
				if iss.ConstraintKey != tt.keys[i] {
					t.Errorf("issue %d key = %q; want %q", i, iss.ConstraintKey, tt.keys[i])
				}
				if iss.Severity != tt.severity[i] {
					t.Errorf("issue %d severity = %v; want %v", i, iss.Severity, tt.severity[i])
				}
				if iss.Code != hcx.IssueTypeInvariant {
					t.Errorf("issue %d code = %v; want invariant", i, iss.Code)
				}
			}
		})
	}
}

func TestConstraintsPhase_Messages(t *testing.T) {
	profile := constrainedProfile([]support.Constraint{
		{Key: "pat-x", Severity: "error", Human: "Patient must have a name", Expression: "name.exists()"},
		{Key: "pat-z", Severity: "error", Expression: "gender.exists()"},
	}, nil)
	pctx := newTestContext(t, `{"resourceType": "Patient"}`, profile)

	issues := NewConstraintsPhase(nil).Validate(context.Background(), pctx)
	if findIssue(issues, "Constraint pat-x violated: Patient must have a name") == nil {
		t.Errorf("human message missing: %v", issues)
	}
	if findIssue(issues, "Constraint pat-z violated (expression: gender.exists())") == nil {
		t.Errorf("expression message missing: %v", issues)
	}
}

func TestConstraintsPhase_NestedElement(t *testing.T) {
	profile := constrainedProfile(nil, []support.Constraint{
		{Key: "name-1", Severity: "error", Expression: "family.exists() or given.exists()"},
	})
	pctx := newTestContext(t, `{"resourceType": "Patient", "name": [{"family": "Rao"}, {"text": "R"}]}`, profile)

	issues := NewConstraintsPhase(nil).Validate(context.Background(), pctx)
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Expression[0] != "Patient.name[1]" {
		t.Errorf("Expression = %v; want Patient.name[1]", issues[0].Expression)
	}
}

func TestConstraintsPhase_InvalidExpression(t *testing.T) {
	profile := constrainedProfile([]support.Constraint{
		{Key: "bad-1", Severity: "error", Expression: "name.exists("},
	}, nil)
	pctx := newTestContext(t, `{"resourceType": "Patient"}`, profile)

	issues := NewConstraintsPhase(nil).Validate(context.Background(), pctx)
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Severity != hcx.SeverityWarning || issues[0].Code != hcx.IssueTypeProcessing {
		t.Errorf("issue = %v; want processing warning", issues[0])
	}
}

func TestConstraintsPhase_SkippedWhenDisabled(t *testing.T) {
	profile := constrainedProfile([]support.Constraint{
		{Key: "pat-x", Severity: "error", Expression: "name.exists()"},
	}, nil)
	pctx := newTestContext(t, `{"resourceType": "Patient"}`, profile)
	pctx.Options = hcx.DefaultOptions()
	pctx.Options.ValidateConstraints = false

	if issues := NewConstraintsPhase(nil).Validate(context.Background(), pctx); len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}
}

func TestConstraintsPhase_ContextCancellation(t *testing.T) {
	profile := constrainedProfile([]support.Constraint{
		{Key: "pat-x", Severity: "error", Expression: "name.exists()"},
	}, nil)
	pctx := newTestContext(t, `{"resourceType": "Patient"}`, profile)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if issues := NewConstraintsPhase(nil).Validate(ctx, pctx); len(issues) != 0 {
		t.Errorf("Expected no issues after cancellation, got %v", issues)
	}
}

func TestWellKnownConstraints(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  bool
	}{
		{"ele-1", map[string]any{"family": "Rao"}, true},
		{"ele-1", map[string]any{}, false},
		{"ele-1", []any{}, false},
		{"ele-1", "x", true},
		{"ext-1", map[string]any{"url": "u", "valueString": "v"}, true},
		{"ext-1", map[string]any{"url": "u", "extension": []any{}}, true},
		{"ext-1", map[string]any{"url": "u"}, false},
		{"ext-1", map[string]any{"url": "u", "extension": []any{}, "valueString": "v"}, false},
		{"other", nil, true},
	}
	for _, tt := range tests {
		if got := evaluateWellKnown(tt.key, tt.value); got != tt.want {
			t.Errorf("evaluateWellKnown(%q, %v) = %v; want %v", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestEvaluator_Cache(t *testing.T) {
	e := NewEvaluator()
	for i := 0; i < 3; i++ {
		ok, err := e.Evaluate("name.exists()", map[string]any{"resourceType": "Patient", "name": []any{map[string]any{"family": "Rao"}}})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !ok {
			t.Error("expected expression to hold")
		}
	}
	if e.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d; want 1", e.CacheSize())
	}
}
