package hcx

import (
	"runtime"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Option configures a validator.
type Option func(*Options)

// Options holds validator settings.
type Options struct {
	ValidateTerminology bool
	ValidateConstraints bool

	// RejectUnknownElements turns unknown top-level elements into errors.
	RejectUnknownElements bool

	// StrictMode reports warnings as errors.
	StrictMode bool

	// MaxErrors stops a validation after this many errors. Zero is unlimited.
	MaxErrors int

	// WorkerCount bounds ValidateBatch concurrency.
	WorkerCount int

	// DefaultProfiles maps a resource type to the profile used when the
	// resource declares none in meta.profile.
	DefaultProfiles map[string]string

	Metrics *Metrics
}

// DefaultOptions returns the default settings.
func DefaultOptions() *Options {
	return &Options{
		ValidateTerminology:   true,
		ValidateConstraints:   true,
		RejectUnknownElements: true,
		WorkerCount:           runtime.NumCPU(),
		DefaultProfiles:       make(map[string]string),
	}
}

// Validate checks the settings are usable.
func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.MaxErrors, validation.Min(0)),
		validation.Field(&o.WorkerCount, validation.Required, validation.Min(1)),
	)
}

func WithTerminology(enable bool) Option {
	return func(o *Options) { o.ValidateTerminology = enable }
}

func WithConstraints(enable bool) Option {
	return func(o *Options) { o.ValidateConstraints = enable }
}

func WithUnknownElements(reject bool) Option {
	return func(o *Options) { o.RejectUnknownElements = reject }
}

func WithStrictMode(enable bool) Option {
	return func(o *Options) { o.StrictMode = enable }
}

// WithMaxErrors stops validation after max errors. Zero is unlimited.
func WithMaxErrors(max int) Option {
	return func(o *Options) { o.MaxErrors = max }
}

// WithWorkerCount bounds batch validation concurrency.
func WithWorkerCount(count int) Option {
	return func(o *Options) { o.WorkerCount = count }
}

// WithDefaultProfile validates resources of resourceType against url
// when they carry no meta.profile.
func WithDefaultProfile(resourceType, url string) Option {
	return func(o *Options) {
		if o.DefaultProfiles == nil {
			o.DefaultProfiles = make(map[string]string)
		}
		o.DefaultProfiles[resourceType] = url
	}
}

// WithMetrics records validation metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// StrictOptions enables every check and treats warnings as errors.
func StrictOptions() []Option {
	return []Option{
		WithTerminology(true),
		WithConstraints(true),
		WithUnknownElements(true),
		WithStrictMode(true),
	}
}
