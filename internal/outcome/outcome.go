// Package outcome decides whether the tracked roster won a match.
//
// Teams swap sides at half time, so the winner of the final round only tells
// us the result once we know which side the roster held in that round. The
// side is taken from the most common side sample of a tracked player shortly
// before the final round ended.
package outcome

import (
	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/roster"
)

// DefaultLookbackTicks is the window before the final round end searched for
// side samples.
const DefaultLookbackTicks = 1000

// Resolver determines the roster's final-round side and the match result.
type Resolver struct {
	tracked       *roster.Roster
	lookbackTicks int
	assumedSide   model.Team
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookbackTicks sets the side-sample window before the final round end.
func WithLookbackTicks(ticks int) Option {
	return func(r *Resolver) {
		if ticks > 0 {
			r.lookbackTicks = ticks
		}
	}
}

// WithAssumedSide sets the side the roster is assumed to hold when the
// round-count fallback is used.
func WithAssumedSide(side model.Team) Option {
	return func(r *Resolver) {
		if side == model.TeamCT || side == model.TeamT {
			r.assumedSide = side
		}
	}
}

// NewResolver returns a Resolver for the tracked roster.
func NewResolver(tracked *roster.Roster, opts ...Option) *Resolver {
	r := &Resolver{
		tracked:       tracked,
		lookbackTicks: DefaultLookbackTicks,
		assumedSide:   model.TeamCT,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decision is the result of side resolution.
type Decision struct {
	Won        bool
	Side       model.Team // roster side in the final round, TeamUnknown if not resolved from samples
	Resolution model.Resolution
	Player     string // tracked player whose samples decided the side
}

// Resolve decides the match result from the round boundaries and side samples.
func (r *Resolver) Resolve(rounds []model.RoundBoundary, sides []model.SideAssignment) Decision {
	if len(rounds) == 0 {
		return Decision{Resolution: model.Unresolved}
	}

	final := rounds[0]
	for _, rb := range rounds[1:] {
		if rb.EndTick > final.EndTick {
			final = rb
		}
	}

	if side, player, ok := r.finalRoundSide(final.EndTick, sides); ok {
		return Decision{
			Won:        side == final.Winner,
			Side:       side,
			Resolution: model.ResolvedBySides,
			Player:     player,
		}
	}

	var ctWins, tWins int
	for _, rb := range rounds {
		switch rb.Winner {
		case model.TeamCT:
			ctWins++
		case model.TeamT:
			tWins++
		}
	}
	leader := model.TeamUnknown
	switch {
	case ctWins > tWins:
		leader = model.TeamCT
	case tWins > ctWins:
		leader = model.TeamT
	}
	return Decision{
		Won:        leader != model.TeamUnknown && leader == r.assumedSide,
		Resolution: model.ResolvedByRoundCount,
	}
}

// finalRoundSide returns the modal side of the first tracked player, in roster
// order, that has samples in [endTick-lookback, endTick].
func (r *Resolver) finalRoundSide(endTick int, sides []model.SideAssignment) (model.Team, string, bool) {
	from := endTick - r.lookbackTicks
	counts := make(map[string]map[model.Team]int)
	for _, s := range sides {
		if s.Tick < from || s.Tick > endTick {
			continue
		}
		if s.Side != model.TeamCT && s.Side != model.TeamT {
			continue
		}
		c, ok := r.tracked.Canonical(s.Player)
		if !ok {
			continue
		}
		if counts[c] == nil {
			counts[c] = make(map[model.Team]int)
		}
		counts[c][s.Side]++
	}

	for _, name := range r.tracked.Names() {
		if side, ok := mode(counts[name]); ok {
			return side, name, true
		}
	}
	return model.TeamUnknown, "", false
}

// mode returns the most frequent side. Ties go to CT.
func mode(counts map[model.Team]int) (model.Team, bool) {
	ct, t := counts[model.TeamCT], counts[model.TeamT]
	switch {
	case ct == 0 && t == 0:
		return model.TeamUnknown, false
	case t > ct:
		return model.TeamT, true
	default:
		return model.TeamCT, true
	}
}
