package hcx

// IssueSeverity maps to OperationOutcome.issue.severity.
type IssueSeverity string

const (
	SeverityFatal       IssueSeverity = "fatal"
	SeverityError       IssueSeverity = "error"
	SeverityWarning     IssueSeverity = "warning"
	SeverityInformation IssueSeverity = "information"
)

// IssueType maps to OperationOutcome.issue.code.
type IssueType string

const (
	IssueTypeInvalid      IssueType = "invalid"
	IssueTypeStructure    IssueType = "structure"
	IssueTypeRequired     IssueType = "required"
	IssueTypeValue        IssueType = "value"
	IssueTypeInvariant    IssueType = "invariant"
	IssueTypeProcessing   IssueType = "processing"
	IssueTypeNotFound     IssueType = "not-found"
	IssueTypeCodeInvalid  IssueType = "code-invalid"
	IssueTypeNotSupported IssueType = "not-supported"
	IssueTypeTooCostly    IssueType = "too-costly"
)

// Issue is a single validation finding.
type Issue struct {
	Severity    IssueSeverity `json:"severity"`
	Code        IssueType     `json:"code"`
	Diagnostics string        `json:"diagnostics,omitempty"`

	// Expression holds FHIRPath locations of the offending element.
	Expression []string `json:"expression,omitempty"`

	// Phase names the validation phase that raised the issue.
	Phase string `json:"phase,omitempty"`

	// ConstraintKey is set for invariant violations, e.g. "pat-1".
	ConstraintKey string `json:"constraintKey,omitempty"`
}

// IsError reports error and fatal issues.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError || i.Severity == SeverityFatal
}

func (i Issue) IsWarning() bool {
	return i.Severity == SeverityWarning
}

func (i Issue) String() string {
	path := ""
	if len(i.Expression) > 0 {
		path = " at " + i.Expression[0]
	}
	return string(i.Severity) + ": " + i.Diagnostics + path
}

// IssueBuilder builds an Issue fluently.
type IssueBuilder struct {
	issue Issue
}

// NewIssue starts an issue with the given severity and code.
func NewIssue(severity IssueSeverity, code IssueType) *IssueBuilder {
	return &IssueBuilder{issue: Issue{Severity: severity, Code: code}}
}

func Error(code IssueType) *IssueBuilder   { return NewIssue(SeverityError, code) }
func Warning(code IssueType) *IssueBuilder { return NewIssue(SeverityWarning, code) }
func Info(code IssueType) *IssueBuilder    { return NewIssue(SeverityInformation, code) }

func (b *IssueBuilder) Diagnostics(msg string) *IssueBuilder {
	b.issue.Diagnostics = msg
	return b
}

func (b *IssueBuilder) At(path string) *IssueBuilder {
	b.issue.Expression = []string{path}
	return b
}

func (b *IssueBuilder) Phase(phase string) *IssueBuilder {
	b.issue.Phase = phase
	return b
}

func (b *IssueBuilder) Constraint(key string) *IssueBuilder {
	b.issue.ConstraintKey = key
	return b
}

func (b *IssueBuilder) Build() Issue {
	return b.issue
}
