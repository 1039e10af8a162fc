package hcx

// Version is the SDK release.
const Version = "0.7.1"

// FHIRVersion is the FHIR release the validator targets.
const FHIRVersion = "4.0.1"

// ProtocolVersion is the HCX protocol version sent in request headers.
const ProtocolVersion = "0.7.1"
