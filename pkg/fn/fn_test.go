package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestResultOkErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok result")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unwrap = %d, %v", v, err)
	}

	boom := errors.New("boom")
	e := Err[int](boom)
	if e.IsOk() {
		t.Fatal("expected err result")
	}
	if _, err := e.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("unwrap err = %v", err)
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr = %d", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("nil error should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("non-nil error should be err")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(3), strconv.Itoa)
	v, _ := r.Unwrap()
	if v != "3" {
		t.Fatalf("got %q", v)
	}

	e := MapResult(Err[int](errors.New("bad")), strconv.Itoa)
	if e.IsOk() {
		t.Fatal("error should propagate through MapResult")
	}
}

func TestCollect(t *testing.T) {
	all := []Result[int]{Ok(1), Ok(2), Ok(3)}
	vals, err := Collect(all).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 3 || vals[2] != 3 {
		t.Fatalf("vals = %v", vals)
	}

	boom := errors.New("boom")
	mixed := []Result[int]{Ok(1), Err[int](boom), Ok(3)}
	if _, err := Collect(mixed).Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestThen(t *testing.T) {
	double := MapStage(func(n int) int { return n * 2 })
	toStr := MapStage(strconv.Itoa)
	pipeline := Then(double, toStr)

	v, err := pipeline(context.Background(), 21).Unwrap()
	if err != nil || v != "42" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	fail := Stage[int, int](func(context.Context, int) Result[int] {
		return Err[int](boom)
	})
	var called bool
	next := Stage[int, int](func(_ context.Context, n int) Result[int] {
		called = true
		return Ok(n)
	})

	if _, err := Then(fail, next)(context.Background(), 1).Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Fatal("second stage ran after failure")
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	out := ParMap(context.Background(), 8, items, func(_ context.Context, n int) int {
		return n * n
	})
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
}

func TestParMapResultFirstError(t *testing.T) {
	boom := errors.New("boom")
	items := []int{1, 2, 3}
	_, err := ParMapResult(context.Background(), 2, items, func(_ context.Context, n int) Result[int] {
		if n == 2 {
			return Err[int](boom)
		}
		return Ok(n)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestParMapResultCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ParMapResult(ctx, 2, []int{1, 2, 3}, func(_ context.Context, n int) Result[int] {
		return Ok(n)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	opts := RetryOpts{Attempts: 5, BaseWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	v, err := Retry(context.Background(), opts, func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("transient")
		}
		return "done", nil
	})
	if err != nil || v != "done" {
		t.Fatalf("got %q, %v", v, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	var calls int
	opts := RetryOpts{
		Attempts:  5,
		BaseWait:  time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}
	_, err := Retry(context.Background(), opts, func(context.Context) (int, error) {
		calls++
		return 0, fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	opts := RetryOpts{Attempts: 10, BaseWait: 50 * time.Millisecond}
	_, err := Retry(ctx, opts, func(context.Context) (int, error) {
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
