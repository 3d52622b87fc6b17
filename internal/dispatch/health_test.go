package dispatch

import (
	"sync"
	"testing"
)

func TestHealthTrackerThreshold(t *testing.T) {
	h := NewHealthTracker(3)

	h.RecordOutcome("1", RetryableFailure)
	h.RecordOutcome("1", RetryableFailure)
	if h.ShouldSkip("1") {
		t.Fatalf("destination silenced before threshold")
	}
	h.RecordOutcome("1", RetryableFailure)
	if !h.ShouldSkip("1") {
		t.Fatalf("destination not silenced at threshold")
	}
}

func TestHealthTrackerSuccessResets(t *testing.T) {
	h := NewHealthTracker(3)

	h.RecordOutcome("1", RetryableFailure)
	h.RecordOutcome("1", RetryableFailure)
	h.RecordOutcome("1", Success)
	h.RecordOutcome("1", RetryableFailure)
	h.RecordOutcome("1", RetryableFailure)
	if h.ShouldSkip("1") {
		t.Fatalf("success must reset the consecutive counter")
	}

	h.RecordOutcome("1", RetryableFailure)
	if !h.ShouldSkip("1") {
		t.Fatalf("expected trip after three consecutive failures")
	}

	// The only way back is a successful send.
	h.RecordOutcome("1", Success)
	if h.ShouldSkip("1") {
		t.Fatalf("success must clear the skip flag")
	}
}

func TestHealthTrackerPermanentTripsImmediately(t *testing.T) {
	h := NewHealthTracker(3)

	h.RecordOutcome("1", PermanentFailure)
	if !h.ShouldSkip("1") {
		t.Fatalf("permanent failure must silence immediately")
	}
}

func TestHealthTrackerKeysIndependent(t *testing.T) {
	h := NewHealthTracker(2)

	h.RecordOutcome("1", RetryableFailure)
	h.RecordOutcome("1", RetryableFailure)
	if h.ShouldSkip("2") {
		t.Fatalf("unrelated destination affected")
	}
	if !h.ShouldSkip("1") {
		t.Fatalf("tripped destination not silenced")
	}
}

func TestHealthTrackerDefaultsAndEmptyKey(t *testing.T) {
	h := NewHealthTracker(0)
	for i := 0; i < DefaultFailureThreshold; i++ {
		h.RecordOutcome("1", RetryableFailure)
	}
	if !h.ShouldSkip("1") {
		t.Fatalf("zero threshold must fall back to the default")
	}

	h.RecordOutcome("", PermanentFailure)
	if h.ShouldSkip("") {
		t.Fatalf("empty keys are not tracked")
	}
}

func TestHealthTrackerConcurrent(t *testing.T) {
	h := NewHealthTracker(3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.RecordOutcome("1", RetryableFailure)
				h.ShouldSkip("1")
			}
		}()
	}
	wg.Wait()

	if !h.ShouldSkip("1") {
		t.Fatalf("expected destination silenced after concurrent failures")
	}
	total, skipped := h.Snapshot()
	if total != 1 || skipped != 1 {
		t.Fatalf("Snapshot = (%d, %d), want (1, 1)", total, skipped)
	}
}
