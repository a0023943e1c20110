package lookup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/goNutStash/breaker"
	"github.com/Keksclan/goNutStash/kv"
	"github.com/Keksclan/goNutStash/kv/kvtest"
)

func TestString_NegativeCacheStability(t *testing.T) {
	fake := kvtest.New()
	f := New(fake)
	ctx := t.Context()

	var calls atomic.Int32
	fallback := func(context.Context) (string, bool, error) {
		calls.Add(1)
		return "", false, nil
	}

	for i := 0; i < 3; i++ {
		v, found, err := f.String(ctx, "k", time.Minute, fallback)
		if err != nil {
			t.Fatalf("String #%d: %v", i, err)
		}
		if found || v != "" {
			t.Fatalf("call #%d: got (%q, %v), want absent", i, v, found)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fallback ran %d times, want 1", n)
	}
}

func TestString_ReturnsStoreAnswerNotCacheReadback(t *testing.T) {
	fake := kvtest.New()
	f := New(fake)

	v, found, err := f.String(t.Context(), "k", time.Minute, func(context.Context) (string, bool, error) {
		return "fresh", true, nil
	})
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if !found || v != "fresh" {
		t.Fatalf("got (%q, %v), want (fresh, true)", v, found)
	}
	if got, _ := fake.Value("k"); got != "fresh" {
		t.Fatalf("cache holds %q, want fresh", got)
	}
	if d, _ := fake.TTL("k"); d != time.Minute {
		t.Fatalf("cache TTL = %v, want %v", d, time.Minute)
	}
}

func TestMultiLookup_OrderPreserved(t *testing.T) {
	fake := kvtest.New()
	f := New(fake)
	ctx := t.Context()

	if err := fake.Set(ctx, "a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := fake.Set(ctx, "c", Sentinel); err != nil {
		t.Fatal(err)
	}

	vals, err := f.MultiLookup(ctx, "a", "b", "c")
	if err != nil {
		t.Fatalf("MultiLookup: %v", err)
	}
	if len(vals) != 3 {
		t.Fatalf("got %d values, want 3", len(vals))
	}
	if vals[0].State() != Found || vals[0].Raw() != "1" {
		t.Fatalf("vals[0] = (%v, %q), want (found, 1)", vals[0].State(), vals[0].Raw())
	}
	if vals[1].State() != NotCached {
		t.Fatalf("vals[1] = %v, want not_cached", vals[1].State())
	}
	if vals[2].State() != NotFound {
		t.Fatalf("vals[2] = %v, want not_found", vals[2].State())
	}
}

func TestBool_MalformedValueFallsThroughAndHeals(t *testing.T) {
	fake := kvtest.New()
	f := New(fake)
	ctx := t.Context()

	if err := fake.Set(ctx, "flag", "maybe"); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	b, found, err := f.Bool(ctx, "flag", time.Minute, func(context.Context) (bool, bool, error) {
		calls.Add(1)
		return true, true, nil
	})
	if err != nil {
		t.Fatalf("Bool: %v", err)
	}
	if !found || !b {
		t.Fatalf("got (%v, %v), want (true, true)", b, found)
	}
	if calls.Load() != 1 {
		t.Fatalf("fallback ran %d times, want 1", calls.Load())
	}
	if v, _ := fake.Value("flag"); v != EncodeBool(true) {
		t.Fatalf("cache holds %q after heal, want %q", v, EncodeBool(true))
	}
}

func TestCacheOutagePropagates(t *testing.T) {
	fake := kvtest.New()
	fake.Err = kv.ErrUnavailable
	f := New(fake)

	var calls atomic.Int32
	_, _, err := f.String(t.Context(), "k", time.Minute, func(context.Context) (string, bool, error) {
		calls.Add(1)
		return "x", true, nil
	})
	if !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	// An unreachable cache must not silently degrade into a store query
	// per call.
	if calls.Load() != 0 {
		t.Fatal("fallback ran during a cache outage")
	}
}

func TestStoreErrorIsNotNotFound(t *testing.T) {
	fake := kvtest.New()
	f := New(fake)
	boom := errors.New("pg down")

	_, found, err := f.String(t.Context(), "k", time.Minute, func(context.Context) (string, bool, error) {
		return "", false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the store error", err)
	}
	if found {
		t.Fatal("found must be false on error")
	}
	// Nothing was negative-cached: the store was never actually consulted
	// successfully.
	if fake.Contains("k") {
		t.Fatal("a failed fallback must not write the sentinel")
	}
}

func TestStoreGuard_OpenFailsFast(t *testing.T) {
	fake := kvtest.New()
	b := breaker.New(breaker.Config{
		FailureThreshold:   1,
		OpenTimeout:        time.Hour,
		HalfOpenMaxSuccess: 1,
	})
	f := New(fake, WithStoreGuard(b))
	ctx := t.Context()

	boom := errors.New("pg down")
	_, _, err := f.String(ctx, "k1", time.Minute, func(context.Context) (string, bool, error) {
		return "", false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want store error", err)
	}

	// Breaker tripped: the next fallback is rejected without running.
	var calls atomic.Int32
	_, _, err = f.String(ctx, "k2", time.Minute, func(context.Context) (string, bool, error) {
		calls.Add(1)
		return "x", true, nil
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if calls.Load() != 0 {
		t.Fatal("fallback ran while the guard was open")
	}
}

func TestConcurrentColdFallbackIsIdempotent(t *testing.T) {
	fake := kvtest.New()
	f := New(fake)
	ctx := t.Context()

	fallback := func(context.Context) (string, bool, error) {
		return "stable", true, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.String(ctx, "cold", time.Minute, fallback)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}

	// A later read sees the one correct value regardless of how the racing
	// write-backs interleaved.
	v, found, err := f.String(ctx, "cold", time.Minute, func(context.Context) (string, bool, error) {
		t.Fatal("fallback ran on a warm key")
		return "", false, nil
	})
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if !found || v != "stable" {
		t.Fatalf("got (%q, %v), want (stable, true)", v, found)
	}
}

func TestStoreHit_NonPositiveTTLSkipsWrite(t *testing.T) {
	fake := kvtest.New()
	f := New(fake)
	ctx := t.Context()

	if err := f.StoreHit(ctx, "k", "v", 0); err != nil {
		t.Fatalf("StoreHit: %v", err)
	}
	if fake.Contains("k") {
		t.Fatal("zero-TTL hit must not be written (it would never expire)")
	}
}
