package dispatch

import (
	"strings"
	"sync"
)

// Outcome classifies a single send attempt.
type Outcome int

const (
	Success Outcome = iota
	RetryableFailure
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case PermanentFailure:
		return "permanent"
	default:
		return "unknown"
	}
}

// DefaultFailureThreshold is the consecutive retryable-failure count that
// silences a destination.
const DefaultFailureThreshold = 3

// healthState tracks failures for a single destination key.
type healthState struct {
	fails   int
	skipped bool
}

// HealthTracker is a per-destination circuit breaker.
//
// State lives for the process lifetime only: no decay, no expiry, no
// persistence. A destination that tripped stays silenced until a later
// successful send to it, or a restart. That is a documented limitation of
// the design, not something to "fix" with timers.
//
// Safe for concurrent use; one fan-out records outcomes for the same key
// from many goroutines at once.
type HealthTracker struct {
	mu        sync.Mutex
	m         map[string]*healthState
	threshold int
}

// NewHealthTracker builds a tracker tripping after threshold consecutive
// retryable failures (<=0 selects DefaultFailureThreshold).
func NewHealthTracker(threshold int) *HealthTracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &HealthTracker{m: map[string]*healthState{}, threshold: threshold}
}

// ShouldSkip reports whether the destination is currently silenced.
func (h *HealthTracker) ShouldSkip(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.m[key]
	return st != nil && st.skipped
}

// RecordOutcome folds one send outcome into the destination's state.
//
//   - Success resets the counter and clears the skip flag; this is the only
//     way a skipped destination comes back.
//   - PermanentFailure skips immediately, regardless of the counter.
//   - RetryableFailure increments the counter and skips once it reaches the
//     threshold.
func (h *HealthTracker) RecordOutcome(key string, o Outcome) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.m[key]
	if st == nil {
		st = &healthState{}
		h.m[key] = st
	}

	switch o {
	case Success:
		st.fails = 0
		st.skipped = false
	case PermanentFailure:
		st.skipped = true
	case RetryableFailure:
		st.fails++
		if st.fails >= h.threshold {
			st.skipped = true
		}
	}
}

// Snapshot returns the total tracked and currently skipped destination
// counts, for status reporting.
func (h *HealthTracker) Snapshot() (total, skipped int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	total = len(h.m)
	for _, st := range h.m {
		if st != nil && st.skipped {
			skipped++
		}
	}
	return total, skipped
}
