package component

import (
	"errors"
	"sync"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sender interface {
	Send() string
}

type defaultSender struct{}

func (defaultSender) Send() string { return "default" }

type customSender struct{ prefix string }

func (c *customSender) Send() string { return c.prefix + "custom" }

type notASender struct{}

type mapLookup map[string]string

func (m mapLookup) Has(key string) bool { _, ok := m[key]; return ok }

func (m mapLookup) GetString(key string) string { return m[key] }

const key = "outgoingRequestClass"

func newTestRegistry(t *testing.T) (*Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRegistry(WithLogger(zap.New(core)))

	require.NoError(t, r.Register("custom", func(do.Injector) (any, error) {
		return &customSender{}, nil
	}))
	require.NoError(t, r.Register("failing", func(do.Injector) (any, error) {
		return nil, errors.New("boom")
	}))
	require.NoError(t, r.Register("panicking", func(do.Injector) (any, error) {
		panic("constructor exploded")
	}))
	require.NoError(t, r.Register("wrong-type", func(do.Injector) (any, error) {
		return notASender{}, nil
	}))
	require.NoError(t, r.Register("nil", func(do.Injector) (any, error) {
		var s *customSender
		return s, nil
	}))
	return r, logs
}

func defaultFactory() sender { return defaultSender{} }

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		cfg      mapLookup
		want     string
		warnings int
	}{
		{"key absent", mapLookup{}, "default", 0},
		{"configured", mapLookup{key: "custom"}, "custom", 0},
		{"unknown name", mapLookup{key: "io.hcxprotocol.DoesNotExist"}, "default", 1},
		{"empty name", mapLookup{key: ""}, "default", 1},
		{"construction error", mapLookup{key: "failing"}, "default", 1},
		{"constructor panics", mapLookup{key: "panicking"}, "default", 1},
		{"wrong interface", mapLookup{key: "wrong-type"}, "default", 1},
		{"nil instance", mapLookup{key: "nil"}, "default", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, logs := newTestRegistry(t)

			var got sender
			require.NotPanics(t, func() {
				got = Resolve[sender](r, tt.cfg, key, defaultFactory)
			})
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Send())
			assert.Equal(t, tt.warnings, logs.FilterLevelExact(zapcore.WarnLevel).Len())
		})
	}
}

func TestResolve_FreshInstancePerCall(t *testing.T) {
	r, _ := newTestRegistry(t)
	cfg := mapLookup{key: "custom"}

	a := Resolve[sender](r, cfg, key, defaultFactory)
	b := Resolve[sender](r, cfg, key, defaultFactory)
	assert.NotSame(t, a, b)
}

func TestResolve_NilRegistry(t *testing.T) {
	got := Resolve[sender](nil, mapLookup{key: "custom"}, key, defaultFactory)
	assert.Equal(t, "default", got.Send())
}

func TestTryResolve_Error(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := TryResolve[sender](r, mapLookup{key: "missing"}, key)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "missing", resErr.Name)
	assert.ErrorIs(t, err, ErrUnknownComponent)

	_, err = TryResolve[sender](r, mapLookup{key: "wrong-type"}, key)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestFactoryUsesInjector(t *testing.T) {
	r := NewRegistry(WithLogger(zap.NewNop()))
	do.ProvideValue(r.Injector(), "hcx-")

	require.NoError(t, r.Register("prefixed", func(i do.Injector) (any, error) {
		prefix, err := do.Invoke[string](i)
		if err != nil {
			return nil, err
		}
		return &customSender{prefix: prefix}, nil
	}))

	got := Resolve[sender](r, mapLookup{key: "prefixed"}, key, defaultFactory)
	assert.Equal(t, "hcx-custom", got.Send())
}

func TestRegister(t *testing.T) {
	r := NewRegistry(WithLogger(zap.NewNop()))
	f := func(do.Injector) (any, error) { return defaultSender{}, nil }
	g := func(do.Injector) (any, error) { return &customSender{}, nil }

	assert.ErrorIs(t, r.Register("", f), ErrEmptyName)
	assert.ErrorIs(t, r.Register("x", nil), ErrNilFactory)

	require.NoError(t, r.Register("x", f))
	assert.ErrorIs(t, r.Register("x", f), ErrConflictingRegistration)
	assert.ErrorIs(t, r.Register("x", g), ErrConflictingRegistration)

	assert.True(t, r.Has("x"))
	assert.Equal(t, []string{"x"}, r.Names())

	c, err := r.Build("x")
	require.NoError(t, err)
	assert.Equal(t, defaultSender{}, c)
}

func TestRegister_ClosuresFromOneLiteral(t *testing.T) {
	r := NewRegistry(WithLogger(zap.NewNop()))
	factoryFor := func(s sender) Factory {
		return func(do.Injector) (any, error) { return s, nil }
	}

	require.NoError(t, r.Register("sender", factoryFor(defaultSender{})))
	assert.ErrorIs(t, r.Register("sender", factoryFor(&customSender{})), ErrConflictingRegistration)

	c, err := r.Build("sender")
	require.NoError(t, err)
	assert.Equal(t, defaultSender{}, c)
}

func TestRegister_Concurrent(t *testing.T) {
	r := NewRegistry(WithLogger(zap.NewNop()))
	f := func(do.Injector) (any, error) { return defaultSender{}, nil }

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Register("shared", f)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrConflictingRegistration)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, r.Names(), 1)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "github.com/xtanion/integration-sdks/component.customSender", TypeName(&customSender{}))
	assert.Equal(t, "github.com/xtanion/integration-sdks/component.defaultSender", TypeName(defaultSender{}))
	assert.Equal(t, "", TypeName(nil))
	assert.Equal(t, "int", TypeName(3))
}
