package routing

import (
	"strings"
	"time"

	"github.com/upb/qna-gateway/services/providers"
)

// DefaultOrder is used whenever the configured order has no known provider
var DefaultOrder = []providers.ProviderID{providers.Groq, providers.Gemini}

// RouterConfig is the immutable routing policy for one Ask call
type RouterConfig struct {
	// Order is the operator preference list
	Order []providers.ProviderID

	// Forced takes precedence over Order when set
	Forced providers.ProviderID

	// Strict forbids any fallback when Forced is disabled
	Strict bool

	// Disabled providers never appear in a candidate list
	Disabled map[providers.ProviderID]bool

	// Cooldown is how long a provider is skipped after a transient failure
	Cooldown time.Duration

	// AttemptTimeout bounds a single provider call
	AttemptTimeout time.Duration
}

// DefaultRouterConfig returns the default policy
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Order:          append([]providers.ProviderID(nil), DefaultOrder...),
		Disabled:       make(map[providers.ProviderID]bool),
		Cooldown:       120 * time.Second,
		AttemptTimeout: 15 * time.Second,
	}
}

// IsDisabled reports whether id is switched off
func (c RouterConfig) IsDisabled(id providers.ProviderID) bool {
	return c.Disabled[id]
}

// Clone returns a deep copy so callers can derive a config without sharing maps
func (c RouterConfig) Clone() RouterConfig {
	out := c
	out.Order = append([]providers.ProviderID(nil), c.Order...)
	out.Disabled = make(map[providers.ProviderID]bool, len(c.Disabled))
	for id, v := range c.Disabled {
		out.Disabled[id] = v
	}
	return out
}

// ParseOrder turns "groq, Gemini;groq" into [groq gemini].
// Unknown tokens are dropped; separators are comma, semicolon and pipe.
func ParseOrder(raw string) []providers.ProviderID {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})

	order := make([]providers.ProviderID, 0, len(fields))
	for _, field := range fields {
		id, err := providers.ParseProviderID(field)
		if err != nil {
			continue
		}
		order = append(order, id)
	}

	return normalizeOrder(order)
}

// Resolve computes the ordered candidate list for cfg.
// It is pure: the same config always yields the same list.
func Resolve(cfg RouterConfig) []providers.ProviderID {
	order := normalizeOrder(cfg.Order)
	if len(order) == 0 {
		order = append(order, DefaultOrder...)
	}

	if cfg.Forced != "" && cfg.Forced.IsKnown() {
		if cfg.IsDisabled(cfg.Forced) {
			if cfg.Strict {
				return []providers.ProviderID{}
			}
		} else {
			order = moveToFront(order, cfg.Forced)
		}
	}

	candidates := make([]providers.ProviderID, 0, len(order))
	for _, id := range order {
		if cfg.IsDisabled(id) {
			continue
		}
		candidates = append(candidates, id)
	}

	return candidates
}

// normalizeOrder dedupes and drops unknown ids, keeping first occurrences
func normalizeOrder(order []providers.ProviderID) []providers.ProviderID {
	seen := make(map[providers.ProviderID]bool, len(order))
	out := make([]providers.ProviderID, 0, len(order))
	for _, id := range order {
		if !id.IsKnown() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// moveToFront places id first and keeps the relative order of the rest
func moveToFront(order []providers.ProviderID, id providers.ProviderID) []providers.ProviderID {
	out := make([]providers.ProviderID, 0, len(order)+1)
	out = append(out, id)
	for _, other := range order {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}
