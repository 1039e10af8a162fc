package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/pkg/logger"
)

// ErrRecipientRequired is returned when Generate is called without a
// recipient code.
var ErrRecipientRequired = errors.New("request: recipient code is required")

// HCXOutgoing is the default Outgoing implementation. It validates the
// resource, seals it with the protocol headers and posts it to the gateway.
type HCXOutgoing struct {
	basePath   string
	senderCode string
	opts       *options
	log        *zap.Logger
}

// NewHCXOutgoing creates the default outgoing handler for the gateway at
// protocolBasePath, sending as participantCode.
func NewHCXOutgoing(protocolBasePath, participantCode string, opts ...Option) *HCXOutgoing {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &HCXOutgoing{
		basePath:   strings.TrimSuffix(protocolBasePath, "/"),
		senderCode: participantCode,
		opts:       o,
		log:        logger.Or(o.log, "request.outgoing"),
	}
}

// Headers builds the protocol headers for a new request to recipientCode.
func (g *HCXOutgoing) Headers(recipientCode string) map[string]string {
	return map[string]string{
		HeaderAPICallID:     g.opts.newID(),
		HeaderCorrelationID: g.opts.newID(),
		HeaderTimestamp:     strconv.FormatInt(g.opts.now().Unix(), 10),
		HeaderSenderCode:    g.senderCode,
		HeaderRecipientCode: recipientCode,
		HeaderStatus:        StatusRequestInitiated,
	}
}

// Generate validates resource and sends it for op. An invalid resource is
// not sent; the 400 response carries its OperationOutcome. Any gateway
// reply, successful or not, is returned as a Response.
func (g *HCXOutgoing) Generate(ctx context.Context, resource []byte, op Operation, recipientCode string) (*Response, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("request: generate: unknown operation %d", int(op))
	}
	if recipientCode == "" {
		return nil, ErrRecipientRequired
	}

	result, err := validateResource(ctx, g.opts, resource)
	if err != nil {
		return nil, fmt.Errorf("request: generate %s: %w", op, err)
	}
	if result != nil && !result.Valid {
		g.log.Info("outgoing resource failed validation",
			zap.Stringer("operation", op),
			zap.Int("errors", result.ErrorCount()))
		body, err := outcomeJSON(result)
		if err != nil {
			return nil, err
		}
		return NewResponse(http.StatusBadRequest, body), nil
	}

	headers := g.Headers(recipientCode)
	payload, err := g.opts.encryptor.Encrypt(ctx, headers, resource)
	if err != nil {
		return nil, fmt.Errorf("request: encrypt %s payload: %w", op, err)
	}
	return g.post(ctx, op, headers, payload)
}

func (g *HCXOutgoing) post(ctx context.Context, op Operation, headers map[string]string, payload []byte) (*Response, error) {
	url := g.basePath + op.Path()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("request: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("request: read %s response: %w", url, err)
	}

	g.log.Debug("outgoing request sent",
		zap.Stringer("operation", op),
		zap.String("url", url),
		zap.String("api_call_id", headers[HeaderAPICallID]),
		zap.Int("status", resp.StatusCode))
	return NewResponse(resp.StatusCode, string(body)), nil
}
