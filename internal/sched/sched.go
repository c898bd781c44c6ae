// Package sched provides a single-threaded cooperative event loop with
// interval timers and per-frame callbacks.
//
// A Loop is owned by one goroutine, which calls Advance once per frame.
// Every, NextFrame and Advance must only be called from that goroutine.
// Post is the only method safe for use from other goroutines; it is how
// asynchronous work hands its result back to the loop.
package sched

import (
	"sync"
	"time"
)

type timer struct {
	interval time.Duration
	next     time.Time
	fn       func()
	stopped  bool
}

type frame struct {
	fn      func()
	stopped bool
}

// Loop dispatches timers, frame callbacks and posted completions.
type Loop struct {
	now    time.Time
	timers []*timer
	frames []*frame

	mu     sync.Mutex
	posted []func()
}

// New creates a loop whose clock starts at now.
func New(now time.Time) *Loop {
	return &Loop{now: now}
}

// Now returns the time of the last Advance.
func (l *Loop) Now() time.Time {
	return l.now
}

// Every calls fn once per interval, starting one interval from now.
// The returned function cancels the timer; it is safe to call more than once.
func (l *Loop) Every(interval time.Duration, fn func()) (stop func()) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	t := &timer{interval: interval, next: l.now.Add(interval), fn: fn}
	l.timers = append(l.timers, t)
	return func() { t.stopped = true }
}

// NextFrame calls fn once during the next Advance.
func (l *Loop) NextFrame(fn func()) (stop func()) {
	f := &frame{fn: fn}
	l.frames = append(l.frames, f)
	return func() { f.stopped = true }
}

// Post queues fn to run on the loop goroutine during the next Advance.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
}

// Advance moves the clock to now and runs, in order: posted callbacks, due
// timers (catching up one call per elapsed interval) and the frame callbacks
// registered before this call. A callback cancelled by an earlier callback in
// the same Advance does not run.
func (l *Loop) Advance(now time.Time) {
	if now.After(l.now) {
		l.now = now
	}

	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	due := l.timers
	for _, t := range due {
		for !t.stopped && !t.next.After(l.now) {
			t.next = t.next.Add(t.interval)
			t.fn()
		}
	}
	l.timers = compactTimers(l.timers)

	frames := l.frames
	l.frames = nil
	for _, f := range frames {
		if !f.stopped {
			f.fn()
		}
	}
	l.frames = compactFrames(l.frames)
}

// Pending returns the number of live timers and frame callbacks.
func (l *Loop) Pending() int {
	n := 0
	for _, t := range l.timers {
		if !t.stopped {
			n++
		}
	}
	for _, f := range l.frames {
		if !f.stopped {
			n++
		}
	}
	return n
}

func compactTimers(ts []*timer) []*timer {
	kept := ts[:0]
	for _, t := range ts {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	clear(ts[len(kept):])
	return kept
}

func compactFrames(fs []*frame) []*frame {
	kept := fs[:0]
	for _, f := range fs {
		if !f.stopped {
			kept = append(kept, f)
		}
	}
	clear(fs[len(kept):])
	return kept
}
