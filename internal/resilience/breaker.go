package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned when a call is rejected because the breaker is open.
var ErrBreakerOpen = eris.New("breaker is open")

// Breaker is a minimal circuit breaker. The requirement extractor wraps the
// LLM tier in one so a hard-down inference endpoint doesn't stall an entire
// batch: after Threshold consecutive failures the tier is skipped outright
// (falling straight to the keyword tier) until Cooldown elapses, then a
// single probe call is allowed through.
//
// This does not change per-notice semantics: any notice whose LLM call is
// skipped degrades exactly as if the call had failed, and no call is ever
// retried within a notice.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and allows a probe after cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. When the breaker is open and the
// cooldown has elapsed, Allow permits one probe and keeps the breaker open
// until Record sees the probe's outcome.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		// Probe: push the next open window out so concurrent callers don't
		// all probe at once.
		b.openedAt = b.now()
		return nil
	}
	return ErrBreakerOpen
}

// Record feeds a call outcome into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == b.threshold {
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker is currently rejecting calls. Unlike
// Allow, it never consumes the probe slot.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}
