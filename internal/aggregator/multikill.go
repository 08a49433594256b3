package aggregator

// Tier is the multi-kill classification of a single round.
type Tier int

const (
	TierNone Tier = iota
	TierTriple
	TierQuad
	TierAce
)

func (t Tier) String() string {
	switch t {
	case TierAce:
		return "ace"
	case TierQuad:
		return "quad"
	case TierTriple:
		return "triple"
	default:
		return "none"
	}
}

// Classify maps a per-round kill count to exactly one tier.
func Classify(kills int) Tier {
	switch {
	case kills >= 5:
		return TierAce
	case kills == 4:
		return TierQuad
	case kills == 3:
		return TierTriple
	default:
		return TierNone
	}
}

// MultiKills counts rounds per tier for one player.
type MultiKills struct {
	Ace, Quad, Triple int
}

// DetectMultiKills buckets a player's kill ticks by round and counts the
// rounds landing in each tier.
func DetectMultiKills(idx *RoundIndex, killTicks []int) MultiKills {
	perRound := make(map[int]int)
	for _, tick := range killTicks {
		rn, ok := idx.RoundOf(tick)
		if !ok {
			return MultiKills{}
		}
		perRound[rn]++
	}

	var mk MultiKills
	for _, n := range perRound {
		switch Classify(n) {
		case TierAce:
			mk.Ace++
		case TierQuad:
			mk.Quad++
		case TierTriple:
			mk.Triple++
		}
	}
	return mk
}
