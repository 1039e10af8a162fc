// Package support provides the validation support chain: ordered modules
// that answer "do you know this profile, value set or code system?" and
// "is this code valid?".
//
// The chain follows HAPI FHIR's validation support design. Modules signal
// that they cannot answer with ErrNotFound (fetches) or ErrNotSupported
// (code validation), and the chain moves on to the next module.
package support

import (
	"context"
	"errors"
	"strings"

	"github.com/gofhir/fhir/r4"
)

var (
	// ErrNotFound is returned when a module does not hold a definition.
	ErrNotFound = errors.New("support: not found")

	// ErrNotSupported is returned when a module cannot judge a code.
	ErrNotSupported = errors.New("support: not supported")
)

// CoreProfileBase is the canonical prefix of core FHIR StructureDefinitions.
const CoreProfileBase = "http://hl7.org/fhir/StructureDefinition/"

// Support is one validation support module.
type Support interface {
	// Name identifies the module in logs and results.
	Name() string

	FetchStructureDefinition(ctx context.Context, url string) (*StructureDefinition, error)
	FetchValueSet(ctx context.Context, url string) (*r4.ValueSet, error)
	FetchCodeSystem(ctx context.Context, url string) (*r4.CodeSystem, error)

	// ValidateCode checks code against valueSetURL when set, otherwise
	// against the code system. root is the outermost support, used to
	// fetch definitions held by other modules.
	ValidateCode(ctx context.Context, root Support, system, code, valueSetURL string) (*CodeResult, error)
}

// CoreProfileURL returns the base profile URL for a resource type.
func CoreProfileURL(resourceType string) string {
	return CoreProfileBase + resourceType
}

// Canonical drops a "|version" suffix from a canonical URL.
func Canonical(url string) string {
	if idx := strings.LastIndex(url, "|"); idx != -1 {
		return url[:idx]
	}
	return url
}

// IsPass reports whether err means "ask the next module".
func IsPass(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotSupported)
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
