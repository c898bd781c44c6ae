package leaderboard

import (
	"strings"
	"testing"
	"time"
)

func rec(id int64, score int) Record {
	return Record{ID: id, Name: "p", Score: score, Date: time.Unix(id, 0).UTC()}
}

func scores(list []Record) []int {
	out := make([]int, len(list))
	for i, r := range list {
		out[i] = r.Score
	}
	return out
}

func assertDescending(t *testing.T, list []Record) {
	t.Helper()
	for i := 1; i < len(list); i++ {
		if list[i-1].Score < list[i].Score {
			t.Fatalf("list not in descending order: %v", scores(list))
		}
	}
}

func TestAdmitIntoEmptyList(t *testing.T) {
	got := Admit(nil, rec(1, 5))
	if len(got) != 1 || got[0].Score != 5 {
		t.Fatalf("Admit(nil, 5) = %v, want single record with score 5", scores(got))
	}
}

func TestAdmitDropsLowestWhenFull(t *testing.T) {
	var list []Record
	for i, s := range []int{20, 18, 16, 14, 12, 10, 8, 6, 4, 2} {
		list = append(list, rec(int64(i+1), s))
	}
	newRec := rec(100, 15)

	got := Admit(list, newRec)

	want := []int{20, 18, 16, 15, 14, 12, 10, 8, 6, 4}
	if len(got) != MaxEntries {
		t.Fatalf("len = %d, want %d", len(got), MaxEntries)
	}
	for i := range want {
		if got[i].Score != want[i] {
			t.Fatalf("scores = %v, want %v", scores(got), want)
		}
	}
	if got[3].ID != newRec.ID {
		t.Errorf("new record at index 3 has ID %d, want %d", got[3].ID, newRec.ID)
	}
	if len(list) != 10 || list[9].Score != 2 {
		t.Errorf("input list was modified: %v", scores(list))
	}
}

func TestAdmitKeepsInsertionOrderForTies(t *testing.T) {
	list := []Record{rec(1, 10), rec(2, 7), rec(3, 7)}
	got := Admit(list, rec(4, 7))

	wantIDs := []int64{1, 2, 3, 4}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("tie order broken at %d: got ID %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestAdmitTwiceKeepsInvariant(t *testing.T) {
	var list []Record
	for i := 0; i < 12; i++ {
		list = Admit(list, rec(int64(i+1), (i*7)%13))
	}
	r := rec(50, 9)
	once := Admit(list, r)
	twice := Admit(once, r)

	for _, l := range [][]Record{once, twice} {
		if len(l) > MaxEntries {
			t.Fatalf("len = %d exceeds %d", len(l), MaxEntries)
		}
		assertDescending(t, l)
	}
}

func TestAdmitIsPure(t *testing.T) {
	list := []Record{rec(1, 3), rec(2, 9)}
	a := Admit(list, rec(3, 5))
	b := Admit(list, rec(3, 5))
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("results differ at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
	if list[0].Score != 3 || list[1].Score != 9 {
		t.Fatalf("input reordered: %v", scores(list))
	}
}

func TestMergeSkipsKnownIDs(t *testing.T) {
	current := []Record{rec(1, 10), rec(2, 5)}
	incoming := []Record{rec(2, 5), rec(3, 8), rec(1, 10)}

	got := Merge(current, incoming)

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (%v)", len(got), scores(got))
	}
	want := []int{10, 8, 5}
	for i := range want {
		if got[i].Score != want[i] {
			t.Fatalf("scores = %v, want %v", scores(got), want)
		}
	}
}

func TestTopDoesNotModifyInput(t *testing.T) {
	list := []Record{rec(1, 1), rec(2, 6), rec(3, 3), rec(4, 9), rec(5, 4), rec(6, 2)}
	top := Top(list, DisplayEntries)

	if got := scores(top); len(got) != 5 || got[0] != 9 || got[4] != 2 {
		t.Fatalf("Top = %v, want [9 6 4 3 2]", got)
	}
	if list[0].Score != 1 {
		t.Fatalf("input reordered: %v", scores(list))
	}
}

func TestLatest(t *testing.T) {
	if _, ok := Latest(nil); ok {
		t.Fatal("Latest(nil) reported a record")
	}
	got, ok := Latest([]Record{rec(5, 1), rec(9, 0), rec(7, 3)})
	if !ok || got.ID != 9 {
		t.Fatalf("Latest = %+v, want ID 9", got)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultName},
		{"   ", DefaultName},
		{"  ada ", "ada"},
		{strings.Repeat("x", 20), strings.Repeat("x", MaxNameLength)},
		{"ääääääääääääääääää", "ääääääääääääääää"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNextIDStrictlyIncreasing(t *testing.T) {
	now := time.Now()
	a := NextID(now)
	b := NextID(now)
	c := NextID(now.Add(-time.Hour))
	if !(a < b && b < c) {
		t.Fatalf("IDs not increasing: %d %d %d", a, b, c)
	}
}

func TestNextIDEmbedsMilliseconds(t *testing.T) {
	now := time.Now().Add(time.Hour)
	seen := make(map[int64]bool)
	for range 50 {
		id := NextID(now)
		if id/idSpread < now.UnixMilli() || id/idSpread > now.UnixMilli()+1 {
			t.Fatalf("id %d does not start with %d", id, now.UnixMilli())
		}
		seen[id%idSpread] = true
	}
	if len(seen) < 2 {
		t.Fatal("random suffix never varied")
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	r := NewRecord("", -4, now)
	if r.Name != DefaultName {
		t.Errorf("name = %q, want %q", r.Name, DefaultName)
	}
	if r.Score != 0 {
		t.Errorf("score = %d, want 0", r.Score)
	}
	if r.Date.Location() != time.UTC || !r.Date.Equal(now) {
		t.Errorf("date = %v, want %v in UTC", r.Date, now)
	}
}
