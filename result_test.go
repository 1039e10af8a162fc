package hcx

import (
	"sync"
	"testing"
)

func TestResult_Basic(t *testing.T) {
	r := NewResult()

	if !r.Valid {
		t.Error("NewResult should be valid initially")
	}
	if len(r.Issues) != 0 {
		t.Errorf("len(Issues) = %d; want 0", len(r.Issues))
	}
}

func TestResult_AddIssue(t *testing.T) {
	r := NewResult()

	r.AddWarning(IssueTypeValue, "extensible binding", "Patient.maritalStatus")
	if !r.Valid {
		t.Error("Result should still be valid after warning")
	}

	r.AddError(IssueTypeRequired, "missing status", "Coverage.status")
	if r.Valid {
		t.Error("Result should be invalid after error")
	}
	if r.ErrorCount() != 1 || r.WarningCount() != 1 {
		t.Errorf("counts = %d/%d; want 1/1", r.ErrorCount(), r.WarningCount())
	}
	if !r.HasErrors() || !r.HasWarnings() {
		t.Error("HasErrors and HasWarnings should both be true")
	}
	if got := r.Errors()[0].Expression[0]; got != "Coverage.status" {
		t.Errorf("error path = %q", got)
	}
}

func TestResult_AddIssuesWarningsOnly(t *testing.T) {
	r := NewResult()
	r.AddIssues([]Issue{
		{Severity: SeverityWarning, Code: IssueTypeValue},
		{Severity: SeverityInformation, Code: IssueTypeValue},
	})

	if !r.Valid {
		t.Error("Result should still be valid after warnings only")
	}
	if len(r.Warnings()) != 1 {
		t.Errorf("len(Warnings()) = %d; want 1", len(r.Warnings()))
	}
}

func TestResult_MergeAndClone(t *testing.T) {
	a := NewResult()
	b := NewResult()
	b.AddError(IssueTypeInvariant, "pat-1", "Patient.contact[0]")

	a.Merge(b)
	a.Merge(nil)
	if a.Valid {
		t.Error("merged result should be invalid")
	}

	a.ResourceType = "Patient"
	clone := a.Clone()
	a.AddError(IssueTypeInvalid, "later", "Patient")
	if len(clone.Issues) != 1 || clone.ResourceType != "Patient" {
		t.Errorf("clone changed: %+v", clone.Issues)
	}
}

func TestResult_Concurrent(t *testing.T) {
	r := NewResult()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.AddError(IssueTypeInvalid, "x", "Patient")
		}()
	}
	wg.Wait()

	if r.ErrorCount() != 50 {
		t.Errorf("ErrorCount() = %d; want 50", r.ErrorCount())
	}
}

func TestResult_OperationOutcome(t *testing.T) {
	oo := NewResult().OperationOutcome()
	issues := oo["issue"].([]map[string]any)
	if len(issues) != 1 || issues[0]["diagnostics"] != "All OK" {
		t.Errorf("empty result outcome = %v", issues)
	}

	r := NewResult()
	r.AddError(IssueTypeCodeInvalid, "bad code", "Patient.gender")
	oo = r.OperationOutcome()
	if oo["resourceType"] != "OperationOutcome" {
		t.Errorf("resourceType = %v", oo["resourceType"])
	}
	issues = oo["issue"].([]map[string]any)
	if issues[0]["code"] != "code-invalid" || issues[0]["severity"] != "error" {
		t.Errorf("issue = %v", issues[0])
	}
}
