package store

import (
	"context"
	"slices"
	"sync"

	"github.com/tomz197/sshtargets/internal/leaderboard"
)

// Memory keeps the list in process memory. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	records  []leaderboard.Record
	watchers map[int]chan []leaderboard.Record
	nextID   int
}

// NewMemory returns an empty in-memory store.
func NewMemory(initial ...leaderboard.Record) *Memory {
	return &Memory{
		records:  leaderboard.Normalize(slices.Clone(initial)),
		watchers: make(map[int]chan []leaderboard.Record),
	}
}

func (m *Memory) Load(ctx context.Context) ([]leaderboard.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records), nil
}

func (m *Memory) Save(ctx context.Context, records []leaderboard.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = leaderboard.Normalize(slices.Clone(records))
	for _, ch := range m.watchers {
		// Keep only the newest list for slow watchers.
		select {
		case <-ch:
		default:
		}
		ch <- slices.Clone(m.records)
	}
	return nil
}

// Watch calls fn with every list saved after the call.
func (m *Memory) Watch(ctx context.Context, fn func([]leaderboard.Record)) error {
	ch := make(chan []leaderboard.Record, 1)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case list := <-ch:
			fn(list)
		}
	}
}
