package phase

import (
	"context"
	"testing"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/support"
)

func TestPrimitivePhase(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		want     []string
		paths    []string
	}{
		{
			name: "valid values",
			resource: `{"resourceType": "Patient", "id": "p-1.a", "active": true, "gender": "female",
				"birthDate": "1990-01", "deceasedDateTime": "2020-01-01T10:00:00+05:30",
				"name": [{"family": "Rao"}], "contact": [{"gender": "male"}]}`,
		},
		{
			name:     "bad id and date",
			resource: `{"resourceType": "Patient", "id": "@@bad id@@", "birthDate": "not-a-date"}`,
			want:     []string{"Invalid id '@@bad id@@'", "Invalid date 'not-a-date'"},
			paths:    []string{"Patient.id", "Patient.birthDate"},
		},
		{
			name:     "impossible date",
			resource: `{"resourceType": "Patient", "birthDate": "1990-13-01"}`,
			want:     []string{"Invalid date"},
			paths:    []string{"Patient.birthDate"},
		},
		{
			name:     "choice type",
			resource: `{"resourceType": "Patient", "deceasedDateTime": "yesterday"}`,
			want:     []string{"Invalid dateTime 'yesterday'"},
			paths:    []string{"Patient.deceasedDateTime"},
		},
		{
			name:     "backbone element",
			resource: `{"resourceType": "Patient", "contact": [{"gender": "male"}, {"gender": ""}]}`,
			want:     []string{"Invalid code ''"},
			paths:    []string{"Patient.contact[1].gender"},
		},
		{
			name:     "nested wrong kind",
			resource: `{"resourceType": "Patient", "contact": [{"gender": 1}]}`,
			want:     []string{"Expected code, got number"},
			paths:    []string{"Patient.contact[0].gender"},
		},
		{
			name:     "top-level wrong kind left to structure",
			resource: `{"resourceType": "Patient", "active": "yes"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pctx := newTestContext(t, tt.resource, patientProfile())
			issues := NewPrimitivePhase().Validate(context.Background(), pctx)

			if len(issues) != len(tt.want) {
				t.Fatalf("Expected %d issues, got %d: %v", len(tt.want), len(issues), issues)
			}
			for i, frag := range tt.want {
				iss := findIssue(issues, frag)
				if iss == nil {
					t.Errorf("no issue mentioning %q in %v", frag, issues)
					continue
				}
				if iss.Severity != hcx.SeverityError || iss.Code != hcx.IssueTypeValue || iss.Phase != NamePrimitive {
					t.Errorf("issue = %+v; want a value error from %s", iss, NamePrimitive)
				}
				if len(iss.Expression) == 0 || iss.Expression[0] != tt.paths[i] {
					t.Errorf("Expression = %v; want %s", iss.Expression, tt.paths[i])
				}
			}
		})
	}
}

func TestPrimitivePhase_StringWhitespace(t *testing.T) {
	pctx := newTestContext(t, `{"resourceType": "Patient", "name": [{"family": " Rao"}]}`, patientProfile())
	issues := NewPrimitivePhase().Validate(context.Background(), pctx)

	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %v", issues)
	}
	if issues[0].Severity != hcx.SeverityWarning {
		t.Errorf("Severity = %s; want warning", issues[0].Severity)
	}
}

func TestPrimitivePhase_Datatypes(t *testing.T) {
	pre := support.NewPrePopulated("types")
	err := pre.AddStructureDefinition(&support.StructureDefinition{
		URL:  support.CoreProfileURL("HumanName"),
		Type: "HumanName",
		Kind: "complex-type",
		Snapshot: []support.ElementDefinition{
			{ID: "HumanName", Path: "HumanName", Max: "*"},
			{ID: "HumanName.id", Path: "HumanName.id", Max: "1",
				Types: []support.TypeRef{{Code: "http://hl7.org/fhirpath/System.String"}}},
			{ID: "HumanName.use", Path: "HumanName.use", Max: "1", Types: []support.TypeRef{{Code: "code"}}},
			{ID: "HumanName.period", Path: "HumanName.period", Max: "1", Types: []support.TypeRef{{Code: "Period"}}},
		},
	})
	if err != nil {
		t.Fatalf("AddStructureDefinition: %v", err)
	}

	pctx := newTestContext(t, `{"resourceType": "Patient", "name": [
		{"id": "n1", "use": "official", "period": {"start": "2020"}},
		{"use": "official  name"}
	]}`, patientProfile())
	pctx.Support = pre

	issues := NewPrimitivePhase().Validate(context.Background(), pctx)
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %v", issues)
	}
	if got := issues[0].Expression[0]; got != "Patient.name[1].use" {
		t.Errorf("Expression = %s; want Patient.name[1].use", got)
	}
}

func TestPrimitivePhase_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pctx := newTestContext(t, `{"resourceType": "Patient", "id": "@@"}`, patientProfile())
	if issues := NewPrimitivePhase().Validate(ctx, pctx); len(issues) != 0 {
		t.Errorf("Expected no issues after cancellation, got %v", issues)
	}
}

func TestFormatMismatch(t *testing.T) {
	tests := []struct {
		code  string
		value any
		ok    bool
	}{
		{"id", "a-B.9", true},
		{"id", "has space", false},
		{"date", "2024", true},
		{"date", "2024-02-30", true},
		{"date", "24-02-01", false},
		{"dateTime", "2024-02-01T10:00:00Z", true},
		{"dateTime", "2024-02-01T25:00:00Z", false},
		{"instant", "2024-02-01T10:00:00.123Z", true},
		{"instant", "2024-02-01", false},
		{"time", "23:59:60", true},
		{"time", "24:00", false},
		{"uri", "urn:x", true},
		{"uri", "http://a b", false},
		{"code", "a b", true},
		{"code", " a", false},
		{"oid", "urn:oid:1.2.3", true},
		{"oid", "1.2.3", false},
		{"uuid", "urn:uuid:c757873d-ec9a-4326-a141-556f43239520", true},
		{"uuid", "c757873d-ec9a-4326-a141-556f43239520", false},
		{"base64Binary", "aGN4", true},
		{"base64Binary", "not base64!", false},
		{"canonical", "https://a/b|1.0", true},
		{"xhtml", "<div>ok</div>", true},
		{"xhtml", "<p>no</p>", false},
		{"integer", float64(2147483647), true},
		{"integer", float64(2147483648), false},
		{"unsignedInt", float64(0), true},
		{"unsignedInt", float64(-1), false},
		{"positiveInt", float64(0), false},
		{"decimal", 1.5, true},
		{"boolean", false, true},
		{"string", "free text", true},
	}
	for _, tt := range tests {
		msg := formatMismatch(tt.code, tt.value)
		if (msg == "") != tt.ok {
			t.Errorf("formatMismatch(%s, %v) = %q; want ok=%v", tt.code, tt.value, msg, tt.ok)
		}
	}
}

func TestNormalizeSystemType(t *testing.T) {
	tests := map[string]string{
		"http://hl7.org/fhirpath/System.String":   "string",
		"http://hl7.org/fhirpath/System.DateTime": "dateTime",
		"http://hl7.org/fhirpath/System.Quantity": "",
		"date":                                    "date",
	}
	for in, want := range tests {
		if got := normalizeSystemType(in); got != want {
			t.Errorf("normalizeSystemType(%s) = %q; want %q", in, got, want)
		}
	}
}
