package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomz197/sshtargets/internal/leaderboard"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestMemoryLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(sampleRecords()...)
	got, _ := m.Load(ctx)
	got[0].Name = "mallory"

	again, _ := m.Load(ctx)
	if again[0].Name != "ada" {
		t.Fatalf("store mutated through loaded slice: %+v", again[0])
	}
}

func TestMemoryWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()

	updates := make(chan []leaderboard.Record, 4)
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, func(list []leaderboard.Record) { updates <- list })
	}()

	// Wait until the watcher is registered.
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.mu.Lock()
		n := len(m.watchers)
		m.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	select {
	case list := <-updates:
		assertRecords(t, list, sampleRecords())
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
