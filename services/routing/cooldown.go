package routing

import (
	"context"
	"sync"
	"time"

	"github.com/upb/qna-gateway/services/providers"
)

// CooldownTracker records when each provider becomes available again.
// Implementations must be safe for concurrent use.
type CooldownTracker interface {
	// IsAvailable is true iff id has no deadline or now is at or past it
	IsAvailable(ctx context.Context, id providers.ProviderID, now time.Time) bool

	// MarkFailed sets the deadline to now+d, never shortening an existing one
	MarkFailed(ctx context.Context, id providers.ProviderID, now time.Time, d time.Duration)

	// Snapshot returns the deadlines still in the future
	Snapshot(ctx context.Context, now time.Time) map[providers.ProviderID]time.Time
}

// MemoryCooldown is the in-process CooldownTracker
type MemoryCooldown struct {
	mu        sync.RWMutex
	deadlines map[providers.ProviderID]time.Time
}

// NewMemoryCooldown creates an empty tracker
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{
		deadlines: make(map[providers.ProviderID]time.Time),
	}
}

// IsAvailable implements CooldownTracker
func (c *MemoryCooldown) IsAvailable(_ context.Context, id providers.ProviderID, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	deadline, ok := c.deadlines[id]
	return !ok || !now.Before(deadline)
}

// MarkFailed implements CooldownTracker
func (c *MemoryCooldown) MarkFailed(_ context.Context, id providers.ProviderID, now time.Time, d time.Duration) {
	deadline := now.Add(d)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.deadlines[id]; ok && existing.After(deadline) {
		return
	}
	c.deadlines[id] = deadline
}

// Snapshot implements CooldownTracker
func (c *MemoryCooldown) Snapshot(_ context.Context, now time.Time) map[providers.ProviderID]time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[providers.ProviderID]time.Time, len(c.deadlines))
	for id, deadline := range c.deadlines {
		if now.Before(deadline) {
			out[id] = deadline
		}
	}
	return out
}
