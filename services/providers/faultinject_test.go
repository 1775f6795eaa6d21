package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultInjector_FailsOnce(t *testing.T) {
	inner := &stubProvider{id: Gemini, text: "answer"}
	injector := NewFaultInjector(inner)
	assert.True(t, injector.Armed())

	_, err := injector.Generate(context.Background(), "", RequestSpec{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjectedFault)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, int32(0), inner.calls.Load())

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, Gemini, provErr.Provider)

	text, err := injector.Generate(context.Background(), "", RequestSpec{})
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.False(t, injector.Armed())
}

func TestFaultInjector_Rearm(t *testing.T) {
	injector := NewFaultInjector(&stubProvider{id: Groq, text: "x"})

	_, _ = injector.Generate(context.Background(), "", RequestSpec{})
	injector.Arm()

	_, err := injector.Generate(context.Background(), "", RequestSpec{})
	assert.ErrorIs(t, err, ErrInjectedFault)
}

func TestFaultInjector_ConcurrentSingleFailure(t *testing.T) {
	injector := NewFaultInjector(&stubProvider{id: Groq, text: "x"})

	const workers = 16
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := injector.Generate(context.Background(), "", RequestSpec{})
			errs <- err
		}()
	}

	failures := 0
	for i := 0; i < workers; i++ {
		if err := <-errs; err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestFaultInjectionFor_EmptyTarget(t *testing.T) {
	p := &stubProvider{id: Groq}
	assert.Same(t, Provider(p), FaultInjectionFor("")(p))
}
