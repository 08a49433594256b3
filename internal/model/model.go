package model

import (
	"slices"
	"strings"
	"time"
)

// Team represents which side a player is on.
type Team int

const (
	TeamUnknown    Team = 0
	TeamSpectators Team = 1
	TeamT          Team = 2
	TeamCT         Team = 3
)

func (t Team) String() string {
	switch t {
	case TeamT:
		return "T"
	case TeamCT:
		return "CT"
	default:
		return "?"
	}
}

// ParseTeam maps the side labels found in exported tick and round tables
// ("CT", "T", "TERRORIST", numeric 2/3) to a Team.
func ParseTeam(s string) Team {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CT", "COUNTERTERRORIST", "COUNTER-TERRORIST", "3":
		return TeamCT
	case "T", "TERRORIST", "TERRORISTS", "2":
		return TeamT
	case "SPECTATOR", "SPECTATORS", "1":
		return TeamSpectators
	default:
		return TeamUnknown
	}
}

// ---- Raw events exposed by an event source ----

type KillEvent struct {
	Tick     int
	Attacker string
	Victim   string
	Headshot bool
}

type DamageEvent struct {
	Tick     int
	Attacker string
	Weapon   string
	Amount   int
}

type RoundBoundary struct {
	Number  int
	EndTick int
	Winner  Team
}

// SideAssignment is one sample of the side a player occupied at a tick.
type SideAssignment struct {
	Tick   int
	Player string
	Side   Team
}

// Collection names one of the event tables a snapshot may carry. The values
// match the event names used by demo exporters.
type Collection string

const (
	CollectionKills  Collection = "player_death"
	CollectionDamage Collection = "player_hurt"
	CollectionRounds Collection = "round_end"
	CollectionSides  Collection = "ticks"
)

// AllCollections lists every collection in the order they are reported.
var AllCollections = []Collection{CollectionKills, CollectionDamage, CollectionRounds, CollectionSides}

// Columns whose absence degrades individual metrics rather than a whole
// collection.
const (
	ColumnTick         = "tick"
	ColumnAttackerName = "attacker_name"
	ColumnUserName     = "user_name"
	ColumnHeadshot     = "headshot"
	ColumnWeapon       = "weapon"
	ColumnDmgHealth    = "dmg_health"
)

// Snapshot is everything an event source exposes for one recording.
// A collection that the source could not provide is recorded in Missing;
// its slice is then empty. A collection provided without some of its columns
// keeps its rows and lists the absent columns in MissingColumns.
type Snapshot struct {
	Path    string
	MapName string
	ModTime time.Time
	Size    int64

	Kills  []KillEvent
	Damage []DamageEvent
	Rounds []RoundBoundary
	Sides  []SideAssignment

	Missing        map[Collection]string   // collection -> reason
	MissingColumns map[Collection][]string // collection -> absent columns
}

// MarkMissing records that collection c is unavailable.
func (s *Snapshot) MarkMissing(c Collection, reason string) {
	if s.Missing == nil {
		s.Missing = make(map[Collection]string)
	}
	s.Missing[c] = reason
}

// Has reports whether collection c was provided by the source.
func (s *Snapshot) Has(c Collection) bool {
	_, missing := s.Missing[c]
	return !missing
}

// MarkMissingColumn records that collection c was provided without column col.
func (s *Snapshot) MarkMissingColumn(c Collection, col string) {
	if s.MissingColumns == nil {
		s.MissingColumns = make(map[Collection][]string)
	}
	if !slices.Contains(s.MissingColumns[c], col) {
		s.MissingColumns[c] = append(s.MissingColumns[c], col)
	}
}

// HasColumn reports whether collection c was provided with column col.
func (s *Snapshot) HasColumn(c Collection, col string) bool {
	return s.Has(c) && !slices.Contains(s.MissingColumns[c], col)
}

// PlayerNames returns every name seen in the event tables: kill attackers
// and victims first, then damage attackers and side samples. Blanks and the
// literal "None" some exporters emit are skipped.
func (s *Snapshot) PlayerNames() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if name == "" || name == "None" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, k := range s.Kills {
		add(k.Attacker)
		add(k.Victim)
	}
	for _, d := range s.Damage {
		add(d.Attacker)
	}
	for _, a := range s.Sides {
		add(a.Player)
	}
	return out
}

// ---- Derived results ----

type PlayerMatchStats struct {
	MatchID string
	Name    string

	Kills         int
	Deaths        int
	HeadshotKills int

	TotalDamage   int
	UtilityDamage int

	AceRounds    int
	QuadRounds   int
	TripleRounds int

	// CS2 demos do not carry round MVP data; always zero.
	MVPs int
}

func (s *PlayerMatchStats) KDRatio() float64 {
	if s.Deaths == 0 {
		return float64(s.Kills)
	}
	return float64(s.Kills) / float64(s.Deaths)
}

func (s *PlayerMatchStats) HSPercent() float64 {
	if s.Kills == 0 {
		return 0
	}
	return float64(s.HeadshotKills) / float64(s.Kills) * 100
}

// Resolution records how the roster's final-round side was determined.
type Resolution string

const (
	// ResolvedBySides means the side came from side samples in the final round window.
	ResolvedBySides Resolution = "side_samples"
	// ResolvedByRoundCount is the approximate fallback comparing total CT and T round wins.
	ResolvedByRoundCount Resolution = "round_count"
	// Unresolved means there were no rounds to judge; the match is recorded as a loss.
	Unresolved Resolution = "unresolved"
)

type MatchOutcome struct {
	MapName    string
	OccurredAt time.Time
	RosterWon  bool
	Side       Team
	Resolution Resolution
}

// DateTimeLayout is the wire/storage format of MatchOutcome.OccurredAt.
const DateTimeLayout = "2006-01-02 15:04:05"

// MatchSummary is a stored match row for list/show commands.
type MatchSummary struct {
	MatchID   string
	MapName   string
	DateTime  string
	Won       bool
	CreatedAt string
}

// Status is the terminal result of processing one recording.
type Status string

const (
	StatusDelivered     Status = "delivered"
	StatusAlreadyExists Status = "already_exists"
	StatusRejected      Status = "rejected"
	StatusSkipped       Status = "skipped"
	// StatusFailed means the recording could not be read at all.
	StatusFailed Status = "failed"
)
