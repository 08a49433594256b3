package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/upload"
)

// Exists returns true if a match with the given id is already stored.
func (db *DB) Exists(ctx context.Context, matchID string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(1) FROM map_stats WHERE match_id = ?", matchID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert stores the match row and its player rows in one transaction. A
// duplicate match id returns an error wrapping upload.ErrConflict and leaves
// the store unchanged.
func (db *DB) Insert(ctx context.Context, p upload.Payload) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO map_stats(match_id, map_name, date_time, won)
		VALUES (?, ?, ?, ?)`,
		p.MatchID, p.MapStats.MapName, p.MapStats.DateTime, p.MapStats.Won,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert map_stats %s: %w", p.MatchID, upload.ErrConflict)
		}
		return fmt.Errorf("insert map_stats %s: %w", p.MatchID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO player_stats(
			match_id, name,
			kills_total, deaths_total, dmg, utility_dmg, headshot_kills_total,
			ace_rounds_total, quad_rounds_total, triple_rounds_total, mvps
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range p.PlayerStats {
		_, err = stmt.ExecContext(ctx,
			p.MatchID, s.Name,
			s.KillsTotal, s.DeathsTotal, s.Dmg, s.UtilityDmg, s.HeadshotKillsTotal,
			s.AceRoundsTotal, s.QuadRoundsTotal, s.TripleRoundsTotal, s.MVPs,
		)
		if err != nil {
			return fmt.Errorf("insert player_stats for %s: %w", s.Name, err)
		}
	}
	return tx.Commit()
}

// ListMatches returns all stored matches ordered by date_time desc.
func (db *DB) ListMatches(ctx context.Context) ([]model.MatchSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT match_id, map_name, date_time, won, created_at
		FROM map_stats ORDER BY date_time DESC, match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MatchSummary
	for rows.Next() {
		var s model.MatchSummary
		var won int
		if err := rows.Scan(&s.MatchID, &s.MapName, &s.DateTime, &won, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Won = won != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetMatchByPrefix finds the first match whose id starts with the given prefix.
func (db *DB) GetMatchByPrefix(ctx context.Context, prefix string) (*model.MatchSummary, error) {
	var s model.MatchSummary
	var won int
	err := db.conn.QueryRowContext(ctx, `
		SELECT match_id, map_name, date_time, won, created_at
		FROM map_stats WHERE match_id LIKE ? ESCAPE '\' ORDER BY match_id LIMIT 1`, likePrefix(prefix)).
		Scan(&s.MatchID, &s.MapName, &s.DateTime, &won, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Won = won != 0
	return &s, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix returns a LIKE pattern matching values that start with prefix
// literally.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// GetPlayerStats returns all player rows for a match, in insertion order.
func (db *DB) GetPlayerStats(ctx context.Context, matchID string) ([]model.PlayerMatchStats, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT match_id, name,
		       kills_total, deaths_total, dmg, utility_dmg, headshot_kills_total,
		       ace_rounds_total, quad_rounds_total, triple_rounds_total, mvps
		FROM player_stats WHERE match_id = ? ORDER BY id`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerMatchStats
	for rows.Next() {
		var s model.PlayerMatchStats
		if err := rows.Scan(
			&s.MatchID, &s.Name,
			&s.Kills, &s.Deaths, &s.TotalDamage, &s.UtilityDamage, &s.HeadshotKills,
			&s.AceRounds, &s.QuadRounds, &s.TripleRounds, &s.MVPs,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountRows returns the number of map_stats and player_stats rows.
func (db *DB) CountRows(ctx context.Context) (matches, players int, err error) {
	err = db.conn.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(1) FROM map_stats), (SELECT COUNT(1) FROM player_stats)`).
		Scan(&matches, &players)
	return matches, players, err
}

// QueryRaw runs an arbitrary read query and returns the column names and
// every row rendered as strings. NULL renders as "NULL".
func (db *DB) QueryRaw(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}
