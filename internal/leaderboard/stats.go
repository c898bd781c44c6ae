package leaderboard

import "github.com/shopspring/decimal"

// Stats summarizes a full score list (not only the displayed top rows).
type Stats struct {
	Highest int
	Average int // Mean score rounded half up
	Count   int
}

// Summarize computes the scoreboard statistics. The average is computed
// exactly and rounded half up, so a mean of 2.5 becomes 3.
func Summarize(list []Record) Stats {
	if len(list) == 0 {
		return Stats{}
	}
	highest := list[0].Score
	sum := int64(0)
	for _, r := range list {
		if r.Score > highest {
			highest = r.Score
		}
		sum += int64(r.Score)
	}
	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(list))))
	return Stats{
		Highest: highest,
		Average: int(mean.Round(0).IntPart()),
		Count:   len(list),
	}
}
