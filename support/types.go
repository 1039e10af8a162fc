package support

// StructureDefinition is the validator's view of a FHIR StructureDefinition.
type StructureDefinition struct {
	URL            string
	Name           string
	Type           string
	Kind           string
	Abstract       bool
	BaseDefinition string
	FHIRVersion    string
	Snapshot       []ElementDefinition
	Differential   []ElementDefinition
}

// Elements returns the snapshot, or the differential for profiles that
// were published without one.
func (sd *StructureDefinition) Elements() []ElementDefinition {
	if len(sd.Snapshot) > 0 {
		return sd.Snapshot
	}
	return sd.Differential
}

// ElementDefinition constrains one element path.
type ElementDefinition struct {
	ID          string
	Path        string
	SliceName   string
	Min         int
	Max         string
	Types       []TypeRef
	Fixed       any
	Pattern     any
	Binding     *Binding
	Constraints []Constraint
	MustSupport bool
	Slicing     *Slicing
}

// TypeRef is an allowed type for an element.
type TypeRef struct {
	Code          string
	Profile       []string
	TargetProfile []string
}

// Binding ties a coded element to a value set.
type Binding struct {
	Strength    string
	ValueSet    string
	Description string
}

// Binding strengths.
const (
	StrengthRequired   = "required"
	StrengthExtensible = "extensible"
	StrengthPreferred  = "preferred"
	StrengthExample    = "example"
)

// Constraint is a FHIRPath invariant.
type Constraint struct {
	Key        string
	Severity   string
	Human      string
	Expression string
	Source     string
}

// Slicing describes how a repeating element is partitioned.
type Slicing struct {
	Discriminator []Discriminator
	Ordered       bool
	Rules         string
}

// Discriminator identifies slices.
type Discriminator struct {
	Type string
	Path string
}

// CodeResult is the outcome of a code validation.
type CodeResult struct {
	Valid   bool
	System  string
	Code    string
	Display string
	Message string
	// Source names the module that answered.
	Source string
}
