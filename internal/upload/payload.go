package upload

import (
	"github.com/pable/go-cs-matchstats/internal/model"
)

// Payload is the logical record delivered for one match.
type Payload struct {
	MatchID     string        `json:"match_id"`
	PlayerStats []PlayerStats `json:"player_stats"`
	MapStats    MapStats      `json:"map_stats"`
}

type PlayerStats struct {
	Name               string `json:"name"`
	KillsTotal         int    `json:"kills_total"`
	DeathsTotal        int    `json:"deaths_total"`
	Dmg                int    `json:"dmg"`
	UtilityDmg         int    `json:"utility_dmg"`
	HeadshotKillsTotal int    `json:"headshot_kills_total"`
	AceRoundsTotal     int    `json:"ace_rounds_total"`
	QuadRoundsTotal    int    `json:"quad_rounds_total"`
	TripleRoundsTotal  int    `json:"triple_rounds_total"`
	MVPs               int    `json:"mvps"`
}

type MapStats struct {
	MapName  string `json:"map_name"`
	DateTime string `json:"date_time"`
	Won      int    `json:"won"`
}

// NewPayload assembles the delivery record from derived stats and outcome.
func NewPayload(matchID string, stats []model.PlayerMatchStats, outcome model.MatchOutcome) Payload {
	p := Payload{
		MatchID:     matchID,
		PlayerStats: make([]PlayerStats, 0, len(stats)),
		MapStats: MapStats{
			MapName:  outcome.MapName,
			DateTime: outcome.OccurredAt.Format(model.DateTimeLayout),
		},
	}
	if outcome.RosterWon {
		p.MapStats.Won = 1
	}
	for _, s := range stats {
		p.PlayerStats = append(p.PlayerStats, PlayerStats{
			Name:               s.Name,
			KillsTotal:         s.Kills,
			DeathsTotal:        s.Deaths,
			Dmg:                s.TotalDamage,
			UtilityDmg:         s.UtilityDamage,
			HeadshotKillsTotal: s.HeadshotKills,
			AceRoundsTotal:     s.AceRounds,
			QuadRoundsTotal:    s.QuadRounds,
			TripleRoundsTotal:  s.TripleRounds,
			MVPs:               s.MVPs,
		})
	}
	return p
}
