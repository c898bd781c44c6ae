package sched

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestEveryFiresOncePerInterval(t *testing.T) {
	l := New(epoch)
	calls := 0
	l.Every(time.Second, func() { calls++ })

	l.Advance(epoch.Add(999 * time.Millisecond))
	if calls != 0 {
		t.Fatalf("calls before first interval = %d, want 0", calls)
	}
	l.Advance(epoch.Add(time.Second))
	if calls != 1 {
		t.Fatalf("calls after one interval = %d, want 1", calls)
	}
	l.Advance(epoch.Add(3500 * time.Millisecond))
	if calls != 3 {
		t.Fatalf("calls after catch-up = %d, want 3", calls)
	}
}

func TestStopCancelsTimer(t *testing.T) {
	l := New(epoch)
	calls := 0
	var stop func()
	stop = l.Every(time.Second, func() {
		calls++
		stop()
	})
	l.Advance(epoch.Add(5 * time.Second))
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 after self-cancel", calls)
	}
	stop()
	if l.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", l.Pending())
	}
}

func TestTimerCancelledByEarlierCallbackDoesNotRun(t *testing.T) {
	l := New(epoch)
	var stopSecond func()
	secondRan := false
	l.Every(time.Second, func() { stopSecond() })
	stopSecond = l.Every(time.Second, func() { secondRan = true })

	l.Advance(epoch.Add(time.Second))
	if secondRan {
		t.Fatal("cancelled timer ran in the same Advance")
	}
}

func TestNextFrameRunsOnce(t *testing.T) {
	l := New(epoch)
	calls := 0
	l.NextFrame(func() { calls++ })
	l.Advance(epoch.Add(time.Millisecond))
	l.Advance(epoch.Add(2 * time.Millisecond))
	if calls != 1 {
		t.Fatalf("frame calls = %d, want 1", calls)
	}
}

func TestFrameRegisteredDuringAdvanceWaits(t *testing.T) {
	l := New(epoch)
	calls := 0
	var step func()
	step = func() {
		calls++
		l.NextFrame(step)
	}
	l.NextFrame(step)

	for i := 1; i <= 3; i++ {
		l.Advance(epoch.Add(time.Duration(i) * time.Millisecond))
		if calls != i {
			t.Fatalf("after advance %d: calls = %d", i, calls)
		}
	}
	if l.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", l.Pending())
	}
}

func TestStoppedFrameDoesNotRun(t *testing.T) {
	l := New(epoch)
	ran := false
	stop := l.NextFrame(func() { ran = true })
	stop()
	l.Advance(epoch.Add(time.Millisecond))
	if ran {
		t.Fatal("stopped frame ran")
	}
}

func TestPostFromOtherGoroutines(t *testing.T) {
	l := New(epoch)
	var wg sync.WaitGroup
	calls := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() { calls++ })
		}()
	}
	wg.Wait()
	if calls != 0 {
		t.Fatal("posted callbacks ran before Advance")
	}
	l.Advance(epoch)
	if calls != 10 {
		t.Fatalf("posted calls = %d, want 10", calls)
	}
}

func TestPostedRunsBeforeTimers(t *testing.T) {
	l := New(epoch)
	var order []string
	l.Every(time.Second, func() { order = append(order, "timer") })
	l.Post(func() { order = append(order, "posted") })
	l.NextFrame(func() { order = append(order, "frame") })

	l.Advance(epoch.Add(time.Second))
	want := []string{"posted", "timer", "frame"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestClockNeverMovesBackwards(t *testing.T) {
	l := New(epoch)
	l.Advance(epoch.Add(time.Second))
	l.Advance(epoch)
	if !l.Now().Equal(epoch.Add(time.Second)) {
		t.Fatalf("Now = %v, want %v", l.Now(), epoch.Add(time.Second))
	}
}
