package request

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/pkg/logger"
)

// HCXIncoming is the default Incoming implementation. It opens the payload
// and, when validation is enabled, checks the FHIR resource inside it.
type HCXIncoming struct {
	opts *options
	log  *zap.Logger
}

// NewHCXIncoming creates the default incoming handler.
func NewHCXIncoming(opts ...Option) *HCXIncoming {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &HCXIncoming{opts: o, log: logger.Or(o.log, "request.incoming")}
}

// Process decrypts payload and validates it. An invalid resource yields a
// 400 response carrying the OperationOutcome; a valid one a 200 response
// carrying the resource. Errors are returned only when the payload cannot
// be opened or the validator cannot be obtained.
func (h *HCXIncoming) Process(ctx context.Context, payload []byte, op Operation) (*Response, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("request: process: unknown operation %d", int(op))
	}
	resource, err := h.opts.encryptor.Decrypt(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("request: decrypt %s payload: %w", op, err)
	}

	result, err := validateResource(ctx, h.opts, resource)
	if err != nil {
		return nil, fmt.Errorf("request: process %s: %w", op, err)
	}
	if result != nil && !result.Valid {
		h.log.Info("incoming resource failed validation",
			zap.Stringer("operation", op),
			zap.Int("errors", result.ErrorCount()))
		body, err := outcomeJSON(result)
		if err != nil {
			return nil, err
		}
		return NewResponse(http.StatusBadRequest, body), nil
	}

	h.log.Debug("incoming request processed", zap.Stringer("operation", op))
	return NewResponse(http.StatusOK, string(resource)), nil
}

// validateResource returns nil when validation is disabled or no validator
// source is configured.
func validateResource(ctx context.Context, o *options, resource []byte) (*hcx.Result, error) {
	if !o.validate || o.validators == nil {
		return nil, nil
	}
	v, err := o.validators(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain validator: %w", err)
	}
	return v.Validate(ctx, resource), nil
}

func outcomeJSON(result *hcx.Result) (string, error) {
	data, err := json.Marshal(result.OperationOutcome())
	if err != nil {
		return "", fmt.Errorf("request: encode outcome: %w", err)
	}
	return string(data), nil
}
