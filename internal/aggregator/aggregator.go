package aggregator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/roster"
)

var ErrNilSnapshot = errors.New("nil snapshot")

// Warning describes metrics that were zeroed because their source collection,
// or one column of it, was unavailable.
type Warning struct {
	Collection model.Collection
	Column     string // empty when the whole collection is missing
	Metrics    []string
	Reason     string
}

func (w Warning) String() string {
	source := string(w.Collection)
	if w.Column != "" {
		source += "." + w.Column
	}
	return fmt.Sprintf("%s unavailable (%s): %s zeroed", source, w.Reason, strings.Join(w.Metrics, ", "))
}

// Aggregate computes one PlayerMatchStats per tracked player from snap.
// Missing collections and columns never fail the match: the affected metrics
// stay zero and a Warning is returned for each.
func Aggregate(snap *model.Snapshot, tracked *roster.Roster, utility WeaponSet) ([]model.PlayerMatchStats, []Warning, error) {
	if snap == nil {
		return nil, nil, ErrNilSnapshot
	}

	var warnings []Warning
	for _, c := range []model.Collection{model.CollectionKills, model.CollectionDamage, model.CollectionRounds} {
		if snap.Has(c) {
			continue
		}
		warnings = append(warnings, Warning{Collection: c, Metrics: affectedMetrics[c], Reason: snap.Missing[c]})
	}
	for _, c := range []model.Collection{model.CollectionKills, model.CollectionDamage} {
		if !snap.Has(c) {
			continue
		}
		for _, col := range snap.MissingColumns[c] {
			metrics, ok := columnMetrics[c][col]
			if !ok {
				continue
			}
			warnings = append(warnings, Warning{
				Collection: c,
				Column:     col,
				Metrics:    metrics,
				Reason:     fmt.Sprintf("missing column %q", col),
			})
		}
	}

	var (
		countKills   = snap.HasColumn(model.CollectionKills, model.ColumnAttackerName)
		countDeaths  = snap.HasColumn(model.CollectionKills, model.ColumnUserName)
		countHS      = countKills && snap.HasColumn(model.CollectionKills, model.ColumnHeadshot)
		countUtility = snap.HasColumn(model.CollectionDamage, model.ColumnWeapon)
		countMulti   = countKills && snap.HasColumn(model.CollectionKills, model.ColumnTick) &&
			snap.Has(model.CollectionRounds) && len(snap.Rounds) > 0
	)

	// ---- Pass 1: resolve the spelling each tracked player used in this recording. ----

	observed := make(map[string]string) // canonical -> name as seen
	for _, n := range snap.PlayerNames() {
		if c, ok := tracked.Canonical(n); ok {
			if _, seen := observed[c]; !seen {
				observed[c] = n
			}
		}
	}

	accums := make(map[string]*model.PlayerMatchStats)
	var order []string
	for _, c := range tracked.Names() {
		name := c
		if n, ok := observed[c]; ok {
			name = n
		}
		accums[c] = &model.PlayerMatchStats{Name: name}
		order = append(order, c)
	}
	lookup := func(name string) *model.PlayerMatchStats {
		c, ok := tracked.Canonical(name)
		if !ok {
			return nil
		}
		return accums[c]
	}

	// ---- Pass 2: kills, deaths, headshots. ----

	for _, k := range snap.Kills {
		if acc := lookup(k.Attacker); acc != nil && countKills {
			acc.Kills++
			if k.Headshot && countHS {
				acc.HeadshotKills++
			}
		}
		if acc := lookup(k.Victim); acc != nil && countDeaths {
			acc.Deaths++
		}
	}

	// ---- Pass 3: raw and utility damage. ----

	for _, d := range snap.Damage {
		acc := lookup(d.Attacker)
		if acc == nil || d.Amount < 0 {
			continue
		}
		acc.TotalDamage += d.Amount
		if countUtility && utility.Contains(d.Weapon) {
			acc.UtilityDamage += d.Amount
		}
	}

	// ---- Pass 4: multi-kill rounds. ----

	if countMulti {
		idx := NewRoundIndex(snap.Rounds)
		for c, acc := range accums {
			tiers := DetectMultiKills(idx, killTicks(snap.Kills, tracked, c))
			acc.AceRounds = tiers.Ace
			acc.QuadRounds = tiers.Quad
			acc.TripleRounds = tiers.Triple
		}
	}

	stats := make([]model.PlayerMatchStats, 0, len(order))
	for _, c := range order {
		stats = append(stats, *accums[c])
	}
	return stats, warnings, nil
}

var affectedMetrics = map[model.Collection][]string{
	model.CollectionKills:  {"kills", "deaths", "headshot_kills", "multi_kills"},
	model.CollectionDamage: {"dmg", "utility_dmg"},
	model.CollectionRounds: {"multi_kills"},
}

// columnMetrics lists the metrics that depend on each optional column.
var columnMetrics = map[model.Collection]map[string][]string{
	model.CollectionKills: {
		model.ColumnAttackerName: {"kills", "headshot_kills", "multi_kills"},
		model.ColumnUserName:     {"deaths"},
		model.ColumnTick:         {"multi_kills"},
		model.ColumnHeadshot:     {"headshot_kills"},
	},
	model.CollectionDamage: {
		model.ColumnWeapon: {"utility_dmg"},
	},
}

// killTicks returns the ticks of every kill made by the tracked player whose
// configured spelling is canonical.
func killTicks(kills []model.KillEvent, tracked *roster.Roster, canonical string) []int {
	var ticks []int
	for _, k := range kills {
		if c, ok := tracked.Canonical(k.Attacker); ok && c == canonical {
			ticks = append(ticks, k.Tick)
		}
	}
	return ticks
}
