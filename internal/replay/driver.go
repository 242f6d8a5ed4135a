package replay

import (
	"context"
	"errors"
	"time"
)

// frameInterval is the target frame cadence. The integrator was tuned
// against browser animation frames, so the server-side driver keeps the
// same ~60 Hz rhythm.
const frameInterval = 16 * time.Millisecond

// Publisher receives a snapshot after every engine mutation: each control
// operation and each tick while playing.
type Publisher func(Snapshot)

// Driver runs the per-frame loop for one engine. It owns the engine on a
// single goroutine, so control operations and ticks never interleave:
// callers submit operations through Do and the loop applies them in order.
//
// Scheduling policy: while the engine is playing, exactly one frame timer
// is armed after each tick; pausing, reaching the end of the trace, or
// cancelling the context disarms it so no stale tick fires afterwards.
type Driver struct {
	engine   *Engine
	publish  Publisher
	commands chan func(*Engine)

	// clock supplies frame timestamps; tests substitute a synthetic one.
	clock    func() time.Time
	interval time.Duration
}

// NewDriver wraps an engine in a frame driver. The publisher may be nil
// when no consumer needs push updates.
func NewDriver(engine *Engine, publish Publisher) *Driver {
	return &Driver{
		engine:   engine,
		publish:  publish,
		commands: make(chan func(*Engine), 16),
		clock:    time.Now,
		interval: frameInterval,
	}
}

// Do submits a control operation to the loop. It blocks until the loop
// accepts the operation or ctx ends.
func (d *Driver) Do(ctx context.Context, op func(*Engine)) error {
	if op == nil {
		return errors.New("operation is required")
	}
	select {
	case d.commands <- op:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the frame loop until ctx ends. It publishes one snapshot on
// entry so consumers render the initial state without waiting for input.
func (d *Driver) Run(ctx context.Context) error {
	timer := time.NewTimer(d.interval)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	disarm := func() {
		if !armed {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		armed = false
	}
	arm := func() {
		if armed {
			return
		}
		timer.Reset(d.interval)
		armed = true
	}

	d.emit()
	for {
		select {
		case <-ctx.Done():
			disarm()
			return nil
		case op := <-d.commands:
			op(d.engine)
			d.emit()
			if d.engine.Playing() {
				arm()
			} else {
				disarm()
			}
		case <-timer.C:
			armed = false
			d.engine.Tick(d.clock())
			d.emit()
			if d.engine.Playing() {
				arm()
			}
		}
	}
}

func (d *Driver) emit() {
	if d.publish == nil {
		return
	}
	d.publish(d.engine.Snapshot())
}
