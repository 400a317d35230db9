package jobs

import (
	"context"
	"testing"
)

type nopJob struct{}

func (nopJob) Run(ctx context.Context) error { return nil }

func TestValidateCron(t *testing.T) {
	valid := []string{"*/10 * * * *", "0 2 * * *", "30 4 1 * 5"}
	invalid := []string{"", "not a cron", "* * * *", "61 * * * *"}

	for _, expr := range valid {
		if err := ValidateCron(expr); err != nil {
			t.Errorf("Expected %q to validate, got %v", expr, err)
		}
	}
	for _, expr := range invalid {
		if err := ValidateCron(expr); err == nil {
			t.Errorf("Expected %q to be rejected", expr)
		}
	}
}

func TestRegisterRejectsBadCron(t *testing.T) {
	s, err := NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	defer s.Stop()

	if err := s.Register("bad", "every five minutes", nopJob{}); err == nil {
		t.Error("Expected registration with invalid cron to fail")
	}
	if err := s.Register("good", "*/5 * * * *", nopJob{}); err != nil {
		t.Errorf("Expected valid registration to succeed, got %v", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	if err := s.Register("job", "0 0 * * *", nopJob{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	s.Start()
	s.Start() // idempotent

	if err := s.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := s.Stop(); err != nil { // idempotent
		t.Errorf("Second stop failed: %v", err)
	}
}
