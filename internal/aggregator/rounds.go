package aggregator

import (
	"sort"

	"github.com/pable/go-cs-matchstats/internal/model"
)

// RoundIndex maps ticks to the round in which they occurred. It is built once
// per match and looked up by binary search.
type RoundIndex struct {
	endTicks []int
	numbers  []int
}

// NewRoundIndex indexes rounds by end tick.
func NewRoundIndex(rounds []model.RoundBoundary) *RoundIndex {
	sorted := make([]model.RoundBoundary, len(rounds))
	copy(sorted, rounds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EndTick < sorted[j].EndTick
	})

	idx := &RoundIndex{
		endTicks: make([]int, len(sorted)),
		numbers:  make([]int, len(sorted)),
	}
	for i, r := range sorted {
		idx.endTicks[i] = r.EndTick
		idx.numbers[i] = r.Number
	}
	return idx
}

// Len returns the number of indexed rounds.
func (idx *RoundIndex) Len() int { return len(idx.endTicks) }

// RoundOf returns the number of the first round whose end tick is >= tick.
// Ticks after the final boundary belong to the last round. ok is false only
// when the index is empty.
func (idx *RoundIndex) RoundOf(tick int) (round int, ok bool) {
	n := len(idx.endTicks)
	if n == 0 {
		return 0, false
	}
	i := sort.SearchInts(idx.endTicks, tick)
	if i == n {
		i = n - 1
	}
	return idx.numbers[i], true
}
