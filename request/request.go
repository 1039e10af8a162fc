// Package request defines the inbound and outbound HCX request capabilities
// and their default implementations.
package request

import (
	"context"
	"net/http"

	hcx "github.com/xtanion/integration-sdks"
)

// Protocol headers set on every outgoing request.
const (
	HeaderAPICallID     = "x-hcx-api_call_id"
	HeaderCorrelationID = "x-hcx-correlation_id"
	HeaderTimestamp     = "x-hcx-timestamp"
	HeaderSenderCode    = "x-hcx-sender_code"
	HeaderRecipientCode = "x-hcx-recipient_code"
	HeaderStatus        = "x-hcx-status"

	StatusRequestInitiated = "request.initiated"
)

// Incoming processes a payload received from the HCX gateway.
type Incoming interface {
	Process(ctx context.Context, payload []byte, op Operation) (*Response, error)
}

// Outgoing sends a FHIR resource to a recipient through the HCX gateway.
type Outgoing interface {
	Generate(ctx context.Context, resource []byte, op Operation, recipientCode string) (*Response, error)
}

// Validator checks a FHIR resource. *engine.Validator implements it.
type Validator interface {
	Validate(ctx context.Context, resource []byte) *hcx.Result
}

// ValidatorSource supplies the validator lazily, so building it is deferred
// until the first request that needs it.
type ValidatorSource func(ctx context.Context) (Validator, error)

// Encryptor seals and opens payloads. Headers are the protocol headers of
// the message.
type Encryptor interface {
	Encrypt(ctx context.Context, headers map[string]string, payload []byte) ([]byte, error)
	Decrypt(ctx context.Context, payload []byte) ([]byte, error)
}

// IdentityEncryptor passes payloads through unchanged.
type IdentityEncryptor struct{}

func (IdentityEncryptor) Encrypt(_ context.Context, _ map[string]string, payload []byte) ([]byte, error) {
	return payload, nil
}

func (IdentityEncryptor) Decrypt(_ context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}

// Response carries an HTTP status and body.
type Response struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// NewResponse creates a Response.
func NewResponse(status int, body string) *Response {
	return &Response{Status: status, Body: body}
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}
