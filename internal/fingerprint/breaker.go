package fingerprint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contactlink/pkg/platform/sentinel"
)

// BreakerProvider wraps a Provider with a circuit breaker. A provider outage
// otherwise turns every identify call into a slow timeout; once the circuit
// opens, calls fail fast with ErrUnavailable until the cooldown expires and a
// probe request is let through.
type BreakerProvider struct {
	next Provider

	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	open      bool
}

// NewBreakerProvider wraps next. threshold is the number of consecutive
// failures that opens the circuit, cooldown how long it stays open.
func NewBreakerProvider(next Provider, threshold int, cooldown time.Duration) *BreakerProvider {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &BreakerProvider{next: next, threshold: threshold, cooldown: cooldown}
}

func (b *BreakerProvider) Resolve(ctx context.Context, signals Signals) (string, error) {
	if !b.allow() {
		return "", fmt.Errorf("fingerprint provider circuit open: %w", sentinel.ErrUnavailable)
	}

	visitorID, err := b.next.Resolve(ctx, signals)
	if err != nil {
		b.recordFailure()
		return "", err
	}
	b.recordSuccess()
	return visitorID, nil
}

func (b *BreakerProvider) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if time.Now().After(b.openUntil) {
		// Half-open: let one probe through; its outcome decides the state.
		b.open = false
		b.failures = b.threshold - 1
		return true
	}
	return false
}

func (b *BreakerProvider) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

func (b *BreakerProvider) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.open = true
		b.openUntil = time.Now().Add(b.cooldown)
	}
}
