package routing

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/upb/qna-gateway/internal/observability"
	"github.com/upb/qna-gateway/services/providers"
)

// AnswerResult is returned by a successful Ask
type AnswerResult struct {
	// Text is the generated answer
	Text string

	// Provider produced Text
	Provider providers.ProviderID

	// Attempts are the failures absorbed before the success
	Attempts []FailureRecord
}

// AskOption customizes a single Ask call
type AskOption func(*askOptions)

type askOptions struct {
	provider providers.ProviderID
}

// WithProvider restricts the call to id, bypassing the configured order.
// Disabled and credential checks still apply.
func WithProvider(id providers.ProviderID) AskOption {
	return func(o *askOptions) {
		o.provider = id
	}
}

// Router tries candidate providers in policy order until one answers
type Router struct {
	registry *providers.Registry
	cooldown CooldownTracker
	config   atomic.Pointer[RouterConfig]
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewRouter creates a router. metrics may be nil.
func NewRouter(registry *providers.Registry, cooldown CooldownTracker, cfg RouterConfig, logger *zap.Logger, metrics *observability.Metrics) *Router {
	if cooldown == nil {
		cooldown = NewMemoryCooldown()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		registry: registry,
		cooldown: cooldown,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
	r.Reconfigure(cfg)
	return r
}

// Config returns a copy of the current routing policy
func (r *Router) Config() RouterConfig {
	return r.config.Load().Clone()
}

// Reconfigure atomically replaces the routing policy.
// Calls already in flight keep the snapshot they started with.
func (r *Router) Reconfigure(cfg RouterConfig) {
	snapshot := cfg.Clone()
	r.config.Store(&snapshot)
	r.logger.Info("routing policy updated",
		zap.Strings("order", idStrings(Resolve(snapshot))),
		zap.String("forced", snapshot.Forced.String()),
		zap.Bool("strict", snapshot.Strict),
		zap.Duration("cooldown", snapshot.Cooldown))
}

// Ask answers req using the current policy
func (r *Router) Ask(ctx context.Context, req providers.RequestSpec, opts ...AskOption) (*AnswerResult, error) {
	return r.AskWithConfig(ctx, *r.config.Load(), req, opts...)
}

// AskWithConfig answers req using cfg.
// Only ErrNoCandidates and *ExhaustedError are returned.
func (r *Router) AskWithConfig(ctx context.Context, cfg RouterConfig, req providers.RequestSpec, opts ...AskOption) (*AnswerResult, error) {
	var o askOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := observability.LoggerFromContext(ctx, r.logger)

	candidates := r.candidates(cfg, o)
	if len(candidates) == 0 {
		r.metrics.RecordRequest(observability.ResultNoCandidates)
		logger.Warn("no provider candidates",
			zap.String("forced", cfg.Forced.String()),
			zap.Bool("strict", cfg.Strict),
			zap.String("override", o.provider.String()))
		return nil, ErrNoCandidates
	}

	active := r.activeSet(ctx, candidates)
	if len(active) == 0 {
		logger.Warn("every candidate is cooling down, trying the full order",
			zap.Strings("candidates", idStrings(candidates)))
		active = candidates
	}

	failures := make([]FailureRecord, 0, len(active))
	for i, id := range active {
		provider, err := r.registry.GetProvider(id)
		if err != nil || !provider.Config().HasCredential() {
			cause := providers.ErrCredentialMissing
			if err != nil {
				cause = fmt.Errorf("%w: %v", providers.ErrCredentialMissing, err)
			}
			rec := FailureRecord{Provider: id, Kind: KindCredentialMissing, Cause: cause, At: r.now()}
			failures = append(failures, rec)
			r.metrics.RecordAttempt(id.String(), observability.OutcomeSkipped, 0)
			r.metrics.RecordFailure(id.String(), rec.Kind.String())
			logger.Debug("skipping provider without credential", zap.String("provider", id.String()))
			continue
		}

		text, elapsed, err := r.attempt(ctx, cfg, provider, req)
		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" {
				r.metrics.RecordAttempt(id.String(), observability.OutcomeSuccess, elapsed)
				r.metrics.RecordRequest(observability.ResultAnswered)
				logger.Info("provider answered",
					zap.String("provider", id.String()),
					zap.Int("attempt", i+1),
					zap.Duration("latency", elapsed))
				return &AnswerResult{Text: text, Provider: id, Attempts: failures}, nil
			}
			err = ErrEmptyAnswer
		}

		rec := FailureRecord{Provider: id, Kind: Classify(err), Cause: err, At: r.now()}
		callerErr := ctx.Err()
		if callerErr != nil {
			rec.Kind = KindTransient
		}
		failures = append(failures, rec)
		r.metrics.RecordAttempt(id.String(), observability.OutcomeFailure, elapsed)
		r.metrics.RecordFailure(id.String(), rec.Kind.String())

		cooled := rec.Kind == KindTransient && callerErr == nil && cfg.Cooldown > 0
		if cooled {
			r.cooldown.MarkFailed(ctx, id, rec.At, cfg.Cooldown)
			r.metrics.RecordCooldown(id.String())
		}

		logger.Warn("provider attempt failed",
			zap.String("provider", id.String()),
			zap.String("kind", rec.Kind.String()),
			zap.Int("attempt", i+1),
			zap.Bool("cooldown", cooled),
			zap.Duration("latency", elapsed),
			zap.Error(err))

		if callerErr != nil {
			r.metrics.RecordRequest(observability.ResultExhausted)
			return nil, &ExhaustedError{Last: rec, Attempts: failures, ctxErr: callerErr}
		}
	}

	last := failures[len(failures)-1]
	r.metrics.RecordRequest(observability.ResultExhausted)
	logger.Error("all providers exhausted",
		zap.Int("attempts", len(failures)),
		zap.String("last_provider", last.Provider.String()),
		zap.String("last_kind", last.Kind.String()))

	return nil, &ExhaustedError{Last: last, Attempts: failures}
}

// candidates resolves the policy, or the single override when one is given
func (r *Router) candidates(cfg RouterConfig, o askOptions) []providers.ProviderID {
	if o.provider == "" {
		return Resolve(cfg)
	}
	if !o.provider.IsKnown() || cfg.IsDisabled(o.provider) {
		return []providers.ProviderID{}
	}
	return []providers.ProviderID{o.provider}
}

// activeSet keeps the candidates that are not cooling down
func (r *Router) activeSet(ctx context.Context, candidates []providers.ProviderID) []providers.ProviderID {
	now := r.now()
	active := make([]providers.ProviderID, 0, len(candidates))
	for _, id := range candidates {
		if r.cooldown.IsAvailable(ctx, id, now) {
			active = append(active, id)
			continue
		}
		r.metrics.RecordAttempt(id.String(), observability.OutcomeSkipped, 0)
	}
	return active
}

// attempt makes one bounded provider call
func (r *Router) attempt(ctx context.Context, cfg RouterConfig, p providers.Provider, req providers.RequestSpec) (string, time.Duration, error) {
	attemptCtx := ctx
	if cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := p.Generate(attemptCtx, p.Config().Model, req)
	return text, time.Since(start), err
}

// ProviderStatus describes one provider for operators
type ProviderStatus struct {
	ID            providers.ProviderID `json:"id"`
	Registered    bool                 `json:"registered"`
	Disabled      bool                 `json:"disabled"`
	HasCredential bool                 `json:"has_credential"`
	Model         string               `json:"model,omitempty"`
	CooldownUntil *time.Time           `json:"cooldown_until,omitempty"`
}

// Status is a read-only view of the routing policy and cooldowns
type Status struct {
	Order     []providers.ProviderID `json:"order"`
	Forced    providers.ProviderID   `json:"forced,omitempty"`
	Strict    bool                   `json:"strict"`
	Cooldown  int64                  `json:"cooldown_seconds"`
	Providers []ProviderStatus       `json:"providers"`
}

// Status reports the resolved order and the state of every known provider
func (r *Router) Status(ctx context.Context) Status {
	cfg := r.config.Load()
	now := r.now()
	deadlines := r.cooldown.Snapshot(ctx, now)

	status := Status{
		Order:     Resolve(*cfg),
		Forced:    cfg.Forced,
		Strict:    cfg.Strict,
		Cooldown:  int64(cfg.Cooldown / time.Second),
		Providers: make([]ProviderStatus, 0, len(providers.Known)),
	}

	for _, id := range providers.Known {
		ps := ProviderStatus{ID: id, Disabled: cfg.IsDisabled(id)}
		if p, err := r.registry.GetProvider(id); err == nil {
			ps.Registered = true
			ps.HasCredential = p.Config().HasCredential()
			ps.Model = p.Config().Model
		}
		if deadline, ok := deadlines[id]; ok {
			d := deadline
			ps.CooldownUntil = &d
		}
		status.Providers = append(status.Providers, ps)
	}

	return status
}

func idStrings(ids []providers.ProviderID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
