package delivery

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{}
	base := 10 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(base, tt.attempt); got != tt.want {
			t.Errorf("Delay(%v, %d) = %v, want %v", base, tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_Capped(t *testing.T) {
	b := Backoff{Max: time.Minute}
	if got := b.Delay(time.Minute, 3); got != time.Minute {
		t.Errorf("Delay = %v, want cap", got)
	}
	if got := b.Delay(time.Hour, 1); got != time.Minute {
		t.Errorf("Delay with base over cap = %v, want cap", got)
	}

	// Large attempt numbers must not overflow.
	if got := (Backoff{}).Delay(time.Second, 200); got != DefaultMaxBackoff {
		t.Errorf("Delay(200) = %v, want %v", got, DefaultMaxBackoff)
	}
}

func TestBackoffDecide(t *testing.T) {
	b := Backoff{}
	if d := b.Decide(true, 3, 3); d != Delivered {
		t.Errorf("success = %v", d)
	}
	if d := b.Decide(false, 1, 3); d != Retry {
		t.Errorf("attempt 1/3 = %v", d)
	}
	if d := b.Decide(false, 3, 3); d != Exhausted {
		t.Errorf("attempt 3/3 = %v", d)
	}
	if d := b.Decide(false, 1, 1); d != Exhausted {
		t.Errorf("attempt 1/1 = %v", d)
	}
}

func TestStatePredicates(t *testing.T) {
	for _, s := range []State{StateDelivered, StateFailed, StateDisabled} {
		if !s.Terminal() || s.Open() {
			t.Errorf("%s: terminal=%v open=%v", s, s.Terminal(), s.Open())
		}
	}
	for _, s := range []State{StatePending, StateProcessing, StateRetry} {
		if s.Terminal() || !s.Open() {
			t.Errorf("%s: terminal=%v open=%v", s, s.Terminal(), s.Open())
		}
	}
}
