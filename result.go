package hcx

import (
	"sync"
)

// Result is the outcome of validating one resource.
type Result struct {
	// Valid is false once any error or fatal issue is added.
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`

	ResourceType string `json:"resourceType,omitempty"`

	// Profile is the StructureDefinition URL the resource was checked against.
	Profile string `json:"profile,omitempty"`

	mu sync.Mutex
}

// NewResult returns an empty, valid result.
func NewResult() *Result {
	return &Result{
		Valid:  true,
		Issues: make([]Issue, 0, 8),
	}
}

// AddIssue appends issue. Safe for concurrent use.
func (r *Result) AddIssue(issue Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Issues = append(r.Issues, issue)
	if issue.IsError() {
		r.Valid = false
	}
}

// AddIssues appends issues. Safe for concurrent use.
func (r *Result) AddIssues(issues []Issue) {
	if len(issues) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Issues = append(r.Issues, issues...)
	for _, issue := range issues {
		if issue.IsError() {
			r.Valid = false
			break
		}
	}
}

// AddError adds an error issue at path.
func (r *Result) AddError(code IssueType, diagnostics, path string) {
	r.AddIssue(Issue{
		Severity:    SeverityError,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  []string{path},
	})
}

// AddWarning adds a warning issue at path.
func (r *Result) AddWarning(code IssueType, diagnostics, path string) {
	r.AddIssue(Issue{
		Severity:    SeverityWarning,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  []string{path},
	})
}

func (r *Result) HasErrors() bool   { return r.ErrorCount() > 0 }
func (r *Result) HasWarnings() bool { return r.WarningCount() > 0 }

func (r *Result) ErrorCount() int {
	return r.count(Issue.IsError)
}

func (r *Result) WarningCount() int {
	return r.count(Issue.IsWarning)
}

func (r *Result) count(match func(Issue) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, issue := range r.Issues {
		if match(issue) {
			n++
		}
	}
	return n
}

// Errors returns error and fatal issues.
func (r *Result) Errors() []Issue {
	return r.filter(Issue.IsError)
}

// Warnings returns warning issues.
func (r *Result) Warnings() []Issue {
	return r.filter(Issue.IsWarning)
}

func (r *Result) filter(match func(Issue) bool) []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Issue
	for _, issue := range r.Issues {
		if match(issue) {
			out = append(out, issue)
		}
	}
	return out
}

// Merge adds the issues of other.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}

	other.mu.Lock()
	issues := make([]Issue, len(other.Issues))
	copy(issues, other.Issues)
	other.mu.Unlock()

	r.AddIssues(issues)
}

// Clone returns an independent copy.
func (r *Result) Clone() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := &Result{
		Valid:        r.Valid,
		Issues:       make([]Issue, len(r.Issues)),
		ResourceType: r.ResourceType,
		Profile:      r.Profile,
	}
	copy(clone.Issues, r.Issues)
	return clone
}

// OperationOutcome renders the result as a FHIR OperationOutcome resource.
// A result without issues yields a single informational "All OK" issue.
func (r *Result) OperationOutcome() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	issues := make([]map[string]any, 0, len(r.Issues))
	for _, i := range r.Issues {
		entry := map[string]any{
			"severity": string(i.Severity),
			"code":     string(i.Code),
		}
		if i.Diagnostics != "" {
			entry["diagnostics"] = i.Diagnostics
		}
		if len(i.Expression) > 0 {
			entry["expression"] = i.Expression
		}
		issues = append(issues, entry)
	}
	if len(issues) == 0 {
		issues = append(issues, map[string]any{
			"severity":    string(SeverityInformation),
			"code":        "informational",
			"diagnostics": "All OK",
		})
	}
	return map[string]any{
		"resourceType": "OperationOutcome",
		"issue":        issues,
	}
}
