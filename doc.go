// Package hcx is the core of the HCX integrator SDK.
//
// It turns a participant's configuration into a ready-to-use FHIR
// validator bound to the HCX and NRCES implementation guides, and resolves
// the components that process incoming and build outgoing protocol
// requests.
//
// # Quick Start
//
//	import "github.com/xtanion/integration-sdks/integrator"
//
//	in, err := integrator.New(ctx, map[string]any{
//	    "protocolBasePath": "https://staging-hcx.swasth.app/api/v0.7",
//	    "participantCode":  "1-521eaec7-8cb9-4b6c-8b4e-4dba300c33ea",
//	    // ...
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v, err := in.Validator(ctx)
//	result := v.Validate(ctx, coverageEligibilityJSON)
//	for _, issue := range result.Errors() {
//	    fmt.Println(issue)
//	}
//
// # Layout
//
//   - config: layered configuration and required-key checks
//   - component: named component factories with fallback resolution
//   - bundle: implementation-guide archive download and extraction
//   - profile: StructureDefinition and ValueSet loading
//   - support: the ordered validation support chain
//   - phase, engine: the validator itself
//   - validation: chain assembly and the keyed validator registry
//   - request: incoming and outgoing protocol request components
//   - integrator: the entry point tying the above together
//
// This package holds the types shared by all of them: Issue, Result,
// Metrics and the validator Options.
package hcx
