package request

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option configures HCXIncoming and HCXOutgoing.
type Option func(*options)

type options struct {
	validators ValidatorSource
	validate   bool
	encryptor  Encryptor
	client     *http.Client
	log        *zap.Logger
	now        func() time.Time
	newID      func() string
}

func defaultOptions() *options {
	return &options{
		validate:  true,
		encryptor: IdentityEncryptor{},
		client:    &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// WithValidator sets the source of the FHIR validator.
func WithValidator(src ValidatorSource) Option {
	return func(o *options) {
		o.validators = src
	}
}

// WithValidation turns FHIR validation on or off. It is on by default but
// has no effect without a validator source.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

// WithEncryptor replaces the identity encryptor.
func WithEncryptor(e Encryptor) Option {
	return func(o *options) {
		if e != nil {
			o.encryptor = e
		}
	}
}

// WithHTTPClient sets the client used for gateway calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides the generator for api call and correlation ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}
