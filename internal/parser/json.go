package parser

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/pable/go-cs-matchstats/internal/model"
)

var ErrInvalidJSON = errors.New("invalid JSON export")

// Column names used by JSON event exports.
const (
	colTick         = model.ColumnTick
	colAttackerName = model.ColumnAttackerName
	colUserName     = model.ColumnUserName
	colHeadshot     = model.ColumnHeadshot
	colWeapon       = model.ColumnWeapon
	colDmgHealth    = model.ColumnDmgHealth
	colRound        = "round"
	colWinner       = "winner"
	colName         = "name"
	colTeamName     = "team_name"
)

// tableColumns describes what a collection needs from its rows.
type tableColumns struct {
	required []string // without these no row is usable
	anyOf    []string // at least one must be present
	optional []string // absence only zeroes the metrics built on them
}

var schema = map[model.Collection]tableColumns{
	model.CollectionKills: {
		anyOf:    []string{colAttackerName, colUserName},
		optional: []string{colAttackerName, colUserName, colTick, colHeadshot},
	},
	model.CollectionDamage: {
		required: []string{colAttackerName, colDmgHealth},
		optional: []string{colWeapon},
	},
	model.CollectionRounds: {required: []string{colTick, colWinner}},
	model.CollectionSides:  {required: []string{colTick, colName, colTeamName}},
}

// ParseJSONFile reads an event export from disk.
func ParseJSONFile(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return ParseJSON(data)
}

// ParseJSON decodes an event export of the form
//
//	{"header": {"map_name": ...},
//	 "events": {"player_death": [...], "player_hurt": [...], "round_end": [...]},
//	 "ticks": [...]}
//
// Absent tables, or tables missing a required column, are recorded as
// missing rather than failing the whole recording. Tables lacking an
// optional column keep their rows and record the column as missing.
func ParseJSON(data []byte) (*model.Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidJSON)
	}

	snap := &model.Snapshot{MapName: doc.Get("header.map_name").String()}

	if rows, ok := table(snap, doc, "events.player_death", model.CollectionKills); ok {
		for _, r := range rows {
			snap.Kills = append(snap.Kills, model.KillEvent{
				Tick:     int(r.Get(colTick).Int()),
				Attacker: r.Get(colAttackerName).String(),
				Victim:   r.Get(colUserName).String(),
				Headshot: r.Get(colHeadshot).Bool(),
			})
		}
	}

	if rows, ok := table(snap, doc, "events.player_hurt", model.CollectionDamage); ok {
		for _, r := range rows {
			snap.Damage = append(snap.Damage, model.DamageEvent{
				Tick:     int(r.Get(colTick).Int()),
				Attacker: r.Get(colAttackerName).String(),
				Weapon:   r.Get(colWeapon).String(),
				Amount:   int(r.Get(colDmgHealth).Int()),
			})
		}
	}

	if rows, ok := table(snap, doc, "events.round_end", model.CollectionRounds); ok {
		for i, r := range rows {
			number := int(r.Get(colRound).Int())
			if number == 0 {
				number = i + 1
			}
			snap.Rounds = append(snap.Rounds, model.RoundBoundary{
				Number:  number,
				EndTick: int(r.Get(colTick).Int()),
				Winner:  model.ParseTeam(r.Get(colWinner).String()),
			})
		}
	}

	if rows, ok := table(snap, doc, "ticks", model.CollectionSides); ok {
		for _, r := range rows {
			snap.Sides = append(snap.Sides, model.SideAssignment{
				Tick:   int(r.Get(colTick).Int()),
				Player: r.Get(colName).String(),
				Side:   model.ParseTeam(r.Get(colTeamName).String()),
			})
		}
	}

	return snap, nil
}

// table returns the rows at path, or marks c missing and returns false.
// Columns are checked on the first row.
func table(snap *model.Snapshot, doc gjson.Result, path string, c model.Collection) ([]gjson.Result, bool) {
	res := doc.Get(path)
	if !res.Exists() || res.Type == gjson.Null {
		snap.MarkMissing(c, "not present in export")
		return nil, false
	}
	if !res.IsArray() {
		snap.MarkMissing(c, fmt.Sprintf("%s is not an array", path))
		return nil, false
	}
	rows := res.Array()
	if len(rows) == 0 {
		return rows, true
	}

	first := rows[0]
	cols := schema[c]
	for _, col := range cols.required {
		if !first.Get(col).Exists() {
			snap.MarkMissing(c, fmt.Sprintf("missing column %q", col))
			return nil, false
		}
	}
	if len(cols.anyOf) > 0 && !slices.ContainsFunc(cols.anyOf, func(col string) bool { return first.Get(col).Exists() }) {
		snap.MarkMissing(c, fmt.Sprintf("missing columns %q", cols.anyOf))
		return nil, false
	}
	for _, col := range cols.optional {
		if !first.Get(col).Exists() {
			snap.MarkMissingColumn(c, col)
		}
	}
	return rows, true
}
