package replay

import (
	"context"
	"testing"
	"time"
)

// syntheticClock advances a fixed amount per frame. The driver is the only
// caller, so no locking is needed.
func syntheticClock(step time.Duration) func() time.Time {
	current := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func newTestDriver(engine *Engine, snapshots chan Snapshot) *Driver {
	driver := NewDriver(engine, func(s Snapshot) {
		snapshots <- s
	})
	driver.clock = syntheticClock(50 * time.Millisecond)
	driver.interval = time.Millisecond
	return driver
}

func awaitSnapshot(t *testing.T, snapshots chan Snapshot, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-snapshots:
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestDriverPublishesInitialSnapshot(t *testing.T) {
	t.Parallel()

	snapshots := make(chan Snapshot, 256)
	driver := newTestDriver(New(uniformTrace(11, 1, tenMpsInMph)), snapshots)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	initial := awaitSnapshot(t, snapshots, func(Snapshot) bool { return true })
	if initial.Index != 0 || initial.Playing {
		t.Fatalf("initial snapshot = %+v, want paused at 0", initial)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
}

func TestDriverAdvancesWhilePlayingAndHoldsWhenPaused(t *testing.T) {
	t.Parallel()

	snapshots := make(chan Snapshot, 256)
	driver := newTestDriver(New(uniformTrace(5001, 1, tenMpsInMph)), snapshots)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = driver.Run(ctx) }()

	if err := driver.Do(ctx, (*Engine).Play); err != nil {
		t.Fatalf("submit play: %v", err)
	}
	awaitSnapshot(t, snapshots, func(s Snapshot) bool { return s.Playing })
	advanced := awaitSnapshot(t, snapshots, func(s Snapshot) bool { return s.Index >= 3 })

	if err := driver.Do(ctx, (*Engine).Pause); err != nil {
		t.Fatalf("submit pause: %v", err)
	}
	paused := awaitSnapshot(t, snapshots, func(s Snapshot) bool { return !s.Playing })
	if paused.Index < advanced.Index {
		t.Fatalf("pause rewound index: %d -> %d", advanced.Index, paused.Index)
	}

	// No frame timer stays armed while paused: the loop must go quiet.
	drainDeadline := time.After(50 * time.Millisecond)
drain:
	for {
		select {
		case s := <-snapshots:
			if s.Playing {
				t.Fatalf("unexpected playing snapshot after pause: %+v", s)
			}
		case <-drainDeadline:
			break drain
		}
	}
	select {
	case s := <-snapshots:
		t.Fatalf("stale tick published %+v after pause", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDriverStopsAtEndOfTrace(t *testing.T) {
	t.Parallel()

	snapshots := make(chan Snapshot, 256)
	driver := newTestDriver(New(uniformTrace(6, 1, tenMpsInMph)), snapshots)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = driver.Run(ctx) }()

	if err := driver.Do(ctx, (*Engine).Play); err != nil {
		t.Fatalf("submit play: %v", err)
	}
	final := awaitSnapshot(t, snapshots, func(s Snapshot) bool { return !s.Playing && s.Index > 0 })
	if final.Index != 5 {
		t.Fatalf("final index = %d, want 5", final.Index)
	}
}

func TestDriverDoFailsAfterContextEnds(t *testing.T) {
	t.Parallel()

	driver := NewDriver(New(uniformTrace(11, 1, tenMpsInMph)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Fill the command buffer so Do must wait on the context.
	for i := 0; i < cap(driver.commands); i++ {
		driver.commands <- func(*Engine) {}
	}
	if err := driver.Do(ctx, (*Engine).Play); err == nil {
		t.Fatal("expected context error")
	}
}
