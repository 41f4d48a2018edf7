// Package sched provides drift-free periodic scheduling. Deadlines
// advance on an absolute grid, so a late tick shortens the following
// wait instead of shifting every tick after it.
package sched

import (
	"context"
	"time"
)

// Clock abstracts time so schedules can be tested deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// WallClock is the real time.Now backed Clock.
type WallClock struct{}

func (WallClock) Now() time.Time                         { return time.Now() }
func (WallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Tick describes one deadline on the schedule grid.
type Tick struct {
	Seq      uint64        // tick number, 0 on the first tick
	Deadline time.Time     // absolute deadline of this tick
	Elapsed  time.Duration // nominal time since the first tick, Seq*period
}

// Ticker produces ticks spaced exactly one period apart. The first Wait
// returns immediately and anchors the grid; every later deadline is the
// previous one plus the period, never recomputed from the current time.
// A Ticker is driven by a single goroutine.
type Ticker struct {
	clock  Clock
	period time.Duration

	start    time.Time
	deadline time.Time
	seq      uint64
}

// NewTicker creates a ticker with the given period. A nil clock selects
// the wall clock.
func NewTicker(clock Clock, period time.Duration) *Ticker {
	if clock == nil {
		clock = WallClock{}
	}
	return &Ticker{clock: clock, period: period}
}

// Period returns the tick period.
func (t *Ticker) Period() time.Duration {
	return t.period
}

// Wait blocks until the next deadline and returns its tick. When the
// deadline already passed it returns immediately; the grid still moves
// forward by exactly one period, so overruns are absorbed without
// accumulating drift.
func (t *Ticker) Wait(ctx context.Context) (Tick, error) {
	if t.start.IsZero() {
		t.start = t.clock.Now()
		t.deadline = t.start
	} else {
		t.deadline = t.deadline.Add(t.period)
		t.seq++
	}

	if d := t.deadline.Sub(t.clock.Now()); d > 0 {
		select {
		case <-ctx.Done():
			return Tick{}, ctx.Err()
		case <-t.clock.After(d):
		}
	}

	return Tick{
		Seq:      t.seq,
		Deadline: t.deadline,
		Elapsed:  t.deadline.Sub(t.start),
	}, nil
}

// Reset forgets the grid so the next Wait anchors a fresh one.
func (t *Ticker) Reset() {
	t.start = time.Time{}
	t.deadline = time.Time{}
	t.seq = 0
}
