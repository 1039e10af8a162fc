package integrator

import (
	"net/http"

	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/config"
	"github.com/xtanion/integration-sdks/request"
)

// NewIncoming is the factory for request.HCXIncoming. Factories registered
// with WithComponent can follow the same pattern to pull the configuration
// and validator from the injector.
func NewIncoming(i do.Injector) (any, error) {
	opts, _, err := injectedRequestOptions(i)
	if err != nil {
		return nil, err
	}
	return request.NewHCXIncoming(opts...), nil
}

// NewOutgoing is the factory for request.HCXOutgoing.
func NewOutgoing(i do.Injector) (any, error) {
	opts, store, err := injectedRequestOptions(i)
	if err != nil {
		return nil, err
	}
	return request.NewHCXOutgoing(store.ProtocolBasePath(), store.ParticipantCode(), opts...), nil
}

func injectedRequestOptions(i do.Injector) ([]request.Option, *config.Store, error) {
	store, err := do.Invoke[*config.Store](i)
	if err != nil {
		return nil, nil, err
	}
	validators, err := do.Invoke[request.ValidatorSource](i)
	if err != nil {
		return nil, nil, err
	}
	enc, err := do.Invoke[request.Encryptor](i)
	if err != nil {
		return nil, nil, err
	}
	client, err := do.Invoke[*http.Client](i)
	if err != nil {
		return nil, nil, err
	}
	log, err := do.Invoke[*zap.Logger](i)
	if err != nil {
		return nil, nil, err
	}

	return []request.Option{
		request.WithValidator(validators),
		request.WithValidation(store.FHIRValidationEnabled()),
		request.WithEncryptor(enc),
		request.WithHTTPClient(client),
		request.WithLogger(log.Named("request")),
	}, store, nil
}
