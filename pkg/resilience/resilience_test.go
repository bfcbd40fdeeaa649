package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Cooldown: time.Minute})
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	for i := 0; i < 3; i++ {
		if err := b.Call(context.Background(), fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if err := b.Call(context.Background(), fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker err = %v", err)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return clock }

	boom := errors.New("boom")
	_ = b.Call(context.Background(), func(context.Context) error { return boom })
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	clock = clock.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}

	if err := b.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed after probe success", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return clock }

	boom := errors.New("boom")
	_ = b.Call(context.Background(), func(context.Context) error { return boom })
	clock = clock.Add(11 * time.Second)

	if err := b.Call(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open after failed probe", b.State())
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Cooldown: time.Minute})
	boom := errors.New("boom")

	_ = b.Call(context.Background(), func(context.Context) error { return boom })
	_ = b.Call(context.Background(), func(context.Context) error { return nil })
	_ = b.Call(context.Background(), func(context.Context) error { return boom })
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should be available")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}
}

func TestLimiterRefill(t *testing.T) {
	clock := time.Now()
	l := NewLimiter(LimiterOpts{Rate: 10, Burst: 1})
	l.now = func() time.Time { return clock }

	if !l.Allow() {
		t.Fatal("initial token missing")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}
	clock = clock.Add(200 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("token should have refilled")
	}
}

func TestLimiterZeroOptsStillRefills(t *testing.T) {
	clock := time.Now()
	l := NewLimiter(LimiterOpts{})
	l.now = func() time.Time { return clock }

	if !l.Allow() {
		t.Fatal("defaulted bucket should start full")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}
	clock = clock.Add(time.Second)
	if !l.Allow() {
		t.Fatal("zero Rate must default so tokens keep refilling")
	}
}

func TestLimiterCall(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 1})
	called := 0
	f := func(context.Context) error { called++; return nil }

	if err := l.Call(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	if err := l.Call(context.Background(), f); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v", err)
	}
	if called != 1 {
		t.Fatalf("called = %d", called)
	}
}

func TestLimiterWaitCancel(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
