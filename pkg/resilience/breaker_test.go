package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func passing(context.Context) error { return nil }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := New(Opts{FailThreshold: threshold, Cooldown: cooldown, ProbeMax: 1})
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for range 3 {
		if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state %v, want open", b.State())
	}
	if err := b.Call(ctx, passing); !errors.Is(err, ErrOpen) {
		t.Errorf("open breaker must reject, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	b.Call(ctx, failing)
	b.Call(ctx, passing)
	b.Call(ctx, failing)
	if b.State() != StateClosed {
		t.Errorf("non-consecutive failures must not trip, state %v", b.State())
	}
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	b.Call(ctx, failing)
	if b.State() != StateOpen {
		t.Fatalf("state %v", b.State())
	}

	*now = now.Add(2 * time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatalf("state after cooldown %v, want half-open", b.State())
	}
	if err := b.Call(ctx, passing); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Errorf("successful probe must close, state %v", b.State())
	}
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	b.Call(ctx, failing)
	*now = now.Add(2 * time.Minute)
	b.Call(ctx, failing)
	if b.State() != StateOpen {
		t.Errorf("failed probe must reopen, state %v", b.State())
	}
}
