package config

// Configuration keys read by the SDK.
const (
	// KeyConfigKeys lists the keys that must be present and non-empty.
	KeyConfigKeys = "configKeys"

	KeyProtocolBasePath      = "protocolBasePath"
	KeyParticipantCode       = "participantCode"
	KeyAuthBasePath          = "authBasePath"
	KeyUsername              = "username"
	KeyPassword              = "password"
	KeyEncryptionPrivateKey  = "encryptionPrivateKey"
	KeyHCXIGBasePath         = "hcxIGBasePath"
	KeyNRCESIGBasePath       = "nrcesIGBasePath"
	KeyFHIRValidationEnabled = "fhirValidationEnabled"

	// KeyIncomingRequestClass and KeyOutgoingRequestClass name registered
	// component implementations that replace the default request handlers.
	KeyIncomingRequestClass = "incomingRequestClass"
	KeyOutgoingRequestClass = "outgoingRequestClass"

	KeyWorkDir      = "workDir"
	KeyFetchTimeout = "fetchTimeout"
	KeyLog          = "log"
)

// EnvPrefix is prepended to environment variable names, so protocolBasePath
// is read from HCX_PROTOCOLBASEPATH.
const EnvPrefix = "HCX"
