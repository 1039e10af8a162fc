// Package integrator is the SDK entry point. It loads the participant
// configuration, resolves the request components and hands out the FHIR
// validator for the configured implementation guides.
package integrator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/bundle"
	"github.com/xtanion/integration-sdks/component"
	"github.com/xtanion/integration-sdks/config"
	"github.com/xtanion/integration-sdks/engine"
	"github.com/xtanion/integration-sdks/pkg/logger"
	"github.com/xtanion/integration-sdks/request"
	"github.com/xtanion/integration-sdks/validation"
)

// Names the built-in request components are registered under.
var (
	DefaultIncoming = component.TypeName(request.HCXIncoming{})
	DefaultOutgoing = component.TypeName(request.HCXOutgoing{})
)

// Integrator holds one participant's configuration and request components.
type Integrator struct {
	config     *config.Store
	components *component.Registry
	validators *validation.Registry
	log        *zap.Logger

	incoming request.Incoming
	outgoing request.Outgoing
}

// Option configures New.
type Option func(*options)

type options struct {
	configOpts []config.Option
	factories  []namedFactory
	validators *validation.Registry
	encryptor  request.Encryptor
	client     *http.Client
	log        *zap.Logger
}

type namedFactory struct {
	name    string
	factory component.Factory
}

// WithConfigOptions passes options to config.New.
func WithConfigOptions(opts ...config.Option) Option {
	return func(o *options) {
		o.configOpts = append(o.configOpts, opts...)
	}
}

// WithComponent registers an extra request component that the
// incomingRequestClass or outgoingRequestClass keys may name.
func WithComponent(name string, f component.Factory) Option {
	return func(o *options) {
		o.factories = append(o.factories, namedFactory{name: name, factory: f})
	}
}

// WithValidatorRegistry replaces the shared validator registry.
func WithValidatorRegistry(r *validation.Registry) Option {
	return func(o *options) {
		o.validators = r
	}
}

// WithEncryptor sets the payload encryptor given to the built-in components.
func WithEncryptor(e request.Encryptor) Option {
	return func(o *options) {
		o.encryptor = e
	}
}

// WithHTTPClient sets the client used for gateway calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithLogger sets the logger. Without it a logger is built from the log
// section of the configuration.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New loads and validates the configuration from values and resolves the
// request components. Only configuration errors are returned; a component
// override that cannot be used falls back to the built-in one.
func New(ctx context.Context, values map[string]any, opts ...Option) (*Integrator, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	store, err := config.New(values, o.configOpts...)
	if err != nil {
		return nil, err
	}

	log := o.log
	if log == nil {
		if log, err = newLogger(store); err != nil {
			return nil, err
		}
	}

	in := &Integrator{
		config:     store,
		validators: o.validators,
		log:        log.Named("integrator"),
	}
	if in.validators == nil {
		in.validators = sharedRegistry(store, log)
	}

	in.components = component.NewRegistry(component.WithLogger(log.Named("component")))
	in.provide(o, log)
	if err := in.register(o.factories); err != nil {
		return nil, err
	}

	inj := in.components.Injector()
	in.incoming = component.Resolve(in.components, store, config.KeyIncomingRequestClass, func() request.Incoming {
		return mustBuild[request.Incoming](NewIncoming(inj))
	})
	in.outgoing = component.Resolve(in.components, store, config.KeyOutgoingRequestClass, func() request.Outgoing {
		return mustBuild[request.Outgoing](NewOutgoing(inj))
	})

	in.log.Info("integrator ready",
		zap.String("participant", store.ParticipantCode()),
		zap.Bool("fhir_validation", store.FHIRValidationEnabled()),
		zap.String("incoming", component.TypeName(in.incoming)),
		zap.String("outgoing", component.TypeName(in.outgoing)))
	return in, nil
}

// provide makes the shared dependencies available to component factories.
func (in *Integrator) provide(o *options, log *zap.Logger) {
	inj := in.components.Injector()
	do.ProvideValue(inj, in.config)
	do.ProvideValue(inj, log)
	do.ProvideValue(inj, request.ValidatorSource(in.validatorSource))

	enc := o.encryptor
	if enc == nil {
		enc = request.IdentityEncryptor{}
	}
	do.ProvideValue[request.Encryptor](inj, enc)

	client := o.client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	do.ProvideValue(inj, client)
}

func (in *Integrator) register(extra []namedFactory) error {
	if err := in.components.Register(DefaultIncoming, NewIncoming); err != nil {
		return err
	}
	if err := in.components.Register(DefaultOutgoing, NewOutgoing); err != nil {
		return err
	}
	for _, f := range extra {
		if err := in.components.Register(f.name, f.factory); err != nil {
			return fmt.Errorf("integrator: register %q: %w", f.name, err)
		}
	}
	return nil
}

// mustBuild unwraps a built-in factory result. The built-in factories only
// fail when provide was skipped.
func mustBuild[T any](v any, err error) T {
	if err != nil {
		panic(fmt.Sprintf("integrator: built-in component: %v", err))
	}
	return v.(T)
}

func (in *Integrator) validatorSource(ctx context.Context) (request.Validator, error) {
	return in.Validator(ctx)
}

// Config returns the validated configuration.
func (in *Integrator) Config() *config.Store { return in.config }

// Components returns the component registry, for registering factories after
// construction or inspecting the registered names.
func (in *Integrator) Components() *component.Registry { return in.components }

// IncomingRequest returns the resolved incoming component.
func (in *Integrator) IncomingRequest() request.Incoming { return in.incoming }

// OutgoingRequest returns the resolved outgoing component.
func (in *Integrator) OutgoingRequest() request.Outgoing { return in.outgoing }

// Validator returns the validator for the configured implementation guides,
// downloading and assembling them on first use.
func (in *Integrator) Validator(ctx context.Context) (*engine.Validator, error) {
	return in.validators.GetOrCreate(ctx, in.config.HCXIGBasePath(), in.config.NRCESIGBasePath())
}

func newLogger(store *config.Store) (*zap.Logger, error) {
	cfg, err := store.LogConfig()
	if err != nil {
		return nil, err
	}
	l, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("integrator: build logger: %w", err)
	}
	return l, nil
}

type registryKey struct {
	workDir string
	timeout time.Duration
}

var (
	registriesMu sync.Mutex
	registries   = map[registryKey]*validation.Registry{}
)

// sharedRegistry returns the process-wide registry for the store's download
// settings, so integrators with the same settings share built validators.
func sharedRegistry(store *config.Store, log *zap.Logger) *validation.Registry {
	key := registryKey{workDir: store.WorkDir(), timeout: store.FetchTimeout()}

	registriesMu.Lock()
	defer registriesMu.Unlock()
	if r, ok := registries[key]; ok {
		return r
	}

	vlog := log.Named("validation")
	builder := validation.NewBuilder(
		validation.WithWorkDir(key.workDir),
		validation.WithFetcher(bundle.NewFetcher(
			bundle.WithTimeout(key.timeout),
			bundle.WithFetchLogger(vlog),
		)),
		validation.WithLogger(vlog),
	)
	r := validation.NewRegistry(builder, validation.WithRegistryLogger(vlog))
	registries[key] = r
	return r
}
