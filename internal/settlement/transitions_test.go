package settlement

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusHeldInEscrow, false},
		{StatusPending, StatusCompleted, false},

		{StatusProcessing, StatusHeldInEscrow, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, false},
		{StatusProcessing, StatusRefunded, false},

		{StatusHeldInEscrow, StatusCompleted, true},
		{StatusHeldInEscrow, StatusDisputed, true},
		{StatusHeldInEscrow, StatusRefunded, true},
		{StatusHeldInEscrow, StatusCancelled, false},
		{StatusHeldInEscrow, StatusPending, false},

		{StatusDisputed, StatusRefunded, true},
		{StatusDisputed, StatusCompleted, true},
		{StatusDisputed, StatusHeldInEscrow, true},
		{StatusDisputed, StatusCancelled, false},

		// Terminal states accept nothing.
		{StatusCompleted, StatusRefunded, false},
		{StatusCompleted, StatusDisputed, false},
		{StatusRefunded, StatusHeldInEscrow, false},
		{StatusFailed, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},

		// A status can never transition to itself.
		{StatusPending, StatusPending, false},
		{StatusDisputed, StatusDisputed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestCheckTransition_WrapsSentinel(t *testing.T) {
	err := checkTransition(StatusCompleted, StatusRefunded)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if err := checkTransition(StatusPending, StatusProcessing); err != nil {
		t.Fatalf("legal transition rejected: %v", err)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{
		StatusPending, StatusProcessing, StatusHeldInEscrow, StatusCompleted,
		StatusFailed, StatusCancelled, StatusRefunded, StatusDisputed,
	} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus(Status("shipped")) {
		t.Error("ValidStatus(shipped) = true")
	}
}
