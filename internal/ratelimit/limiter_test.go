package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock lets tests step through the window deterministically.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func TestLimiter_WindowExactness(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(3, 60*time.Second)
	l.now = clock.now

	ctx := context.Background()

	// 3 requests within 1 second: all admitted, remaining counts down.
	for i, wantRemaining := range []int{2, 1, 0} {
		d, err := l.Allow(ctx, "key:abcd1234")
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("request %d rejected, want admitted", i+1)
		}
		if d.Remaining != wantRemaining {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, wantRemaining)
		}
		clock.advance(300 * time.Millisecond)
	}

	// 4th immediately after is rejected with retry close to the full window.
	d, err := l.Allow(ctx, "key:abcd1234")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("4th request admitted, want rejected")
	}
	if d.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", d.Remaining)
	}
	// 900ms have elapsed since the oldest request.
	if want := 60*time.Second - 900*time.Millisecond; d.RetryAfter != want {
		t.Errorf("retry after = %v, want %v", d.RetryAfter, want)
	}

	// Past the window from the first request, admission resumes.
	clock.advance(60 * time.Second)
	d, err = l.Allow(ctx, "key:abcd1234")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Error("request after window expiry rejected, want admitted")
	}
}

func TestLimiter_BucketIsolation(t *testing.T) {
	l := NewLimiter(2, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if d, _ := l.Allow(ctx, "ip:1.2.3.4"); !d.Allowed {
			t.Fatalf("ip:1.2.3.4 request %d rejected", i+1)
		}
	}
	if d, _ := l.Allow(ctx, "ip:1.2.3.4"); d.Allowed {
		t.Error("ip:1.2.3.4 over limit but admitted")
	}

	// A different identity gets its own full allowance.
	for i := 0; i < 2; i++ {
		if d, _ := l.Allow(ctx, "ip:5.6.7.8"); !d.Allowed {
			t.Errorf("ip:5.6.7.8 request %d rejected, buckets not isolated", i+1)
		}
	}
}

func TestLimiter_RetryAfterBounds(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(2, 10*time.Second)
	l.now = clock.now
	ctx := context.Background()

	l.Allow(ctx, "ip:1.2.3.4")
	clock.advance(time.Second)
	l.Allow(ctx, "ip:1.2.3.4")

	d, _ := l.Allow(ctx, "ip:1.2.3.4")
	if d.Allowed {
		t.Fatal("3rd request admitted, want rejected")
	}
	if d.RetryAfter < time.Second || d.RetryAfter > 10*time.Second {
		t.Errorf("retry after = %v, want within (1s, 10s]", d.RetryAfter)
	}
}

func TestLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(5, 10*time.Second)
	l.now = clock.now
	ctx := context.Background()

	l.Allow(ctx, "ip:1.1.1.1")
	l.Allow(ctx, "ip:2.2.2.2")

	if got := l.Sweep(); got != 0 {
		t.Errorf("Sweep() removed %d live identities", got)
	}
	if got := l.Identities(); got != 2 {
		t.Errorf("Identities() = %d, want 2", got)
	}

	clock.advance(11 * time.Second)
	l.Allow(ctx, "ip:3.3.3.3")

	if got := l.Sweep(); got != 2 {
		t.Errorf("Sweep() = %d, want 2 idle identities removed", got)
	}
	if got := l.Identities(); got != 1 {
		t.Errorf("Identities() = %d, want 1", got)
	}
}

func TestLimiter_ConcurrentSameIdentity(t *testing.T) {
	l := NewLimiter(50, time.Minute)
	ctx := context.Background()

	done := make(chan int)
	for g := 0; g < 10; g++ {
		go func() {
			admitted := 0
			for i := 0; i < 10; i++ {
				if d, _ := l.Allow(ctx, "key:shared"); d.Allowed {
					admitted++
				}
			}
			done <- admitted
		}()
	}

	total := 0
	for g := 0; g < 10; g++ {
		total += <-done
	}
	if total != 50 {
		t.Errorf("admitted %d of 100 concurrent requests, want exactly the limit 50", total)
	}
}
