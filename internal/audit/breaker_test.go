package audit

import (
	"testing"
	"time"
)

func TestBreakerClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.IsOpen() {
		t.Error("Breaker opened below threshold")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	if !cb.IsOpen() {
		t.Error("Breaker did not open at threshold")
	}
}

func TestBreakerSuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.IsOpen() {
		t.Error("Breaker open despite success reset")
	}
	if cb.FailureCount() != 1 {
		t.Errorf("Expected failure count 1, got %d", cb.FailureCount())
	}
}

func TestBreakerRecoversAfterWindow(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatal("Breaker should be open")
	}

	time.Sleep(40 * time.Millisecond)

	if cb.IsOpen() {
		t.Error("Breaker did not self-heal after recovery window")
	}
	if cb.FailureCount() != 0 {
		t.Errorf("Expected reset count after recovery, got %d", cb.FailureCount())
	}
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)

	cb.RecordFailure()
	cb.Reset()

	if cb.IsOpen() {
		t.Error("Breaker open after explicit reset")
	}
}

func TestBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(0, 0)

	for i := 0; i < DefaultBreakerThreshold-1; i++ {
		cb.RecordFailure()
	}
	if cb.IsOpen() {
		t.Error("Breaker opened before default threshold")
	}
	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Error("Breaker closed at default threshold")
	}
}
