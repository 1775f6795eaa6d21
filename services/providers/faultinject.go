package providers

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrInjectedFault is the error raised by an armed FaultInjector
var ErrInjectedFault = errors.New("forced-fail (fault injection): temporary quota exceeded")

// FaultInjector wraps a provider and fails its next call exactly once.
// It exists for failover drills: the injected error classifies as transient.
type FaultInjector struct {
	Provider
	armed atomic.Bool
}

// NewFaultInjector wraps p; the injector starts armed
func NewFaultInjector(p Provider) *FaultInjector {
	f := &FaultInjector{Provider: p}
	f.armed.Store(true)
	return f
}

// Arm makes the next Generate call fail
func (f *FaultInjector) Arm() {
	f.armed.Store(true)
}

// Armed reports whether the next call will fail
func (f *FaultInjector) Armed() bool {
	return f.armed.Load()
}

// Generate fails once if armed, otherwise delegates
func (f *FaultInjector) Generate(ctx context.Context, model string, req RequestSpec) (string, error) {
	if f.armed.CompareAndSwap(true, false) {
		return "", NewProviderError(f.ID(), "fault_injected", "", 0, ErrInjectedFault)
	}
	return f.Provider.Generate(ctx, model, req)
}

// FaultInjectionFor returns a registry wrapper that arms a FaultInjector for target only
func FaultInjectionFor(target ProviderID) func(Provider) Provider {
	return func(p Provider) Provider {
		if target == "" || p.ID() != target {
			return p
		}
		return NewFaultInjector(p)
	}
}
