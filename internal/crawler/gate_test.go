package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate(t *testing.T) {
	t.Parallel()

	t.Run("never exceeds its limit", func(t *testing.T) {
		t.Parallel()

		gate := NewGate(4, 0)
		var inFlight, peak atomic.Int32

		var wg sync.WaitGroup
		for range 40 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := gate.Do(t.Context(), func(context.Context) error {
					n := inFlight.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					inFlight.Add(-1)
					return nil
				})
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if got := peak.Load(); got > 4 {
			t.Errorf("expected at most 4 concurrent calls, got %d", got)
		}
	})

	t.Run("returns the function's error", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		gate := NewGate(1, 0)
		if err := gate.Do(t.Context(), func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
			t.Errorf("expected errBoom, got %v", err)
		}
	})

	t.Run("cancelled context skips the call", func(t *testing.T) {
		t.Parallel()

		gate := NewGate(1, 0)
		ctx, cancel := context.WithCancel(t.Context())

		release := make(chan struct{})
		started := make(chan struct{})
		go func() {
			_ = gate.Do(t.Context(), func(context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		cancel()
		called := false
		err := gate.Do(ctx, func(context.Context) error {
			called = true
			return nil
		})
		close(release)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if called {
			t.Error("expected function not to be called")
		}
	})

	t.Run("rate limit spaces out calls", func(t *testing.T) {
		t.Parallel()

		gate := NewGate(10, 20)
		start := time.Now()
		for range 3 {
			if err := gate.Do(t.Context(), func(context.Context) error { return nil }); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected at least 80ms for 3 calls at 20 rps, got %v", elapsed)
		}
	})

	t.Run("limit below one", func(t *testing.T) {
		t.Parallel()

		if got := NewGate(0, 0).Limit(); got != 1 {
			t.Errorf("expected limit 1, got %d", got)
		}
	})
}
