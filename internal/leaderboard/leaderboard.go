// Package leaderboard holds the score record model and the pure functions that
// maintain the retained top-N list.
package leaderboard

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Retention limits.
const (
	MaxEntries     = 10 // Persisted list size
	DisplayEntries = 5  // Rows shown on the scoreboard
	MaxNameLength  = 16 // Runes kept from a player-supplied name
)

// DefaultName replaces an empty player name.
const DefaultName = "Anonymous"

// Record is a single submitted score. Records are created once at round end
// and never mutated afterwards.
type Record struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Score int       `json:"score"`
	Date  time.Time `json:"date"`
}

// NewRecord creates a record for a finished round with a fresh ID.
func NewRecord(name string, score int, now time.Time) Record {
	if score < 0 {
		score = 0
	}
	return Record{
		ID:    NextID(now),
		Name:  NormalizeName(name),
		Score: score,
		Date:  now.UTC(),
	}
}

// NormalizeName trims the name, falls back to DefaultName when nothing is
// left and truncates it to MaxNameLength runes.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	return name
}

// idSpread is the number of random IDs available per millisecond.
const idSpread = 1000

var ids struct {
	mu   sync.Mutex
	last int64
}

// NextID returns an ID made of now in milliseconds followed by three random
// digits, so processes sharing a store rarely collide. Within a process IDs
// are bumped when needed to stay strictly increasing.
func NextID(now time.Time) int64 {
	ids.mu.Lock()
	defer ids.mu.Unlock()
	id := now.UnixMilli()*idSpread + rand.Int64N(idSpread)
	if id <= ids.last {
		id = ids.last + 1
	}
	ids.last = id
	return id
}

// sortByScore stable-sorts records by descending score in place.
func sortByScore(list []Record) {
	slices.SortStableFunc(list, func(a, b Record) int {
		return b.Score - a.Score
	})
}

// Admit returns the retained list after adding rec to current: current and
// rec are stable-sorted by descending score and cut to MaxEntries. Records
// with equal scores keep their insertion order. current is not modified.
func Admit(current []Record, rec Record) []Record {
	next := make([]Record, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, rec)
	return Normalize(next)
}

// Normalize stable-sorts list by descending score and trims it to
// MaxEntries. The input slice is reordered in place.
func Normalize(list []Record) []Record {
	sortByScore(list)
	if len(list) > MaxEntries {
		list = list[:MaxEntries]
	}
	return list
}

// Merge admits every record of incoming whose ID is not already in current,
// in incoming order.
func Merge(current, incoming []Record) []Record {
	known := make(map[int64]struct{}, len(current))
	for _, r := range current {
		known[r.ID] = struct{}{}
	}
	merged := slices.Clone(current)
	for _, r := range incoming {
		if _, ok := known[r.ID]; ok {
			continue
		}
		known[r.ID] = struct{}{}
		merged = Admit(merged, r)
	}
	return merged
}

// Top returns the n best records of list without modifying it.
func Top(list []Record, n int) []Record {
	sorted := slices.Clone(list)
	sortByScore(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Latest returns the most recently created record (highest ID).
func Latest(list []Record) (Record, bool) {
	if len(list) == 0 {
		return Record{}, false
	}
	latest := list[0]
	for _, r := range list[1:] {
		if r.ID > latest.ID {
			latest = r
		}
	}
	return latest, true
}

// Contains reports whether a record with the given ID is present.
func Contains(list []Record, id int64) bool {
	return slices.ContainsFunc(list, func(r Record) bool { return r.ID == id })
}
