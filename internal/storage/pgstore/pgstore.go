// Package pgstore is the PostgreSQL delivery sink, for installations where
// the stats service database is reachable directly.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pable/go-cs-matchstats/internal/upload"
)

var (
	ErrPoolFailed  = errors.New("could not create store pool")
	ErrCreateQuery = errors.New("failed to generate query")
)

//go:embed schema.sql
var schemaSQL string

// Store writes match payloads to PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	// Use $ for pg based queries.
	sb sq.StatementBuilderType
}

// Connect opens a pool for dsn and ensures the schema exists.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, errConfig := pgxpool.ParseConfig(dsn)
	if errConfig != nil {
		return nil, fmt.Errorf("unable to parse db config/dsn: %w", errConfig)
	}

	pool, errPool := pgxpool.NewWithConfig(ctx, cfg)
	if errPool != nil {
		return nil, errors.Join(errPool, ErrPoolFailed)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Name implements upload.Sink.
func (s *Store) Name() string { return "postgres" }

// Exists reports whether matchID has a map_stats row.
func (s *Store) Exists(ctx context.Context, matchID string) (bool, error) {
	query, args, errQuery := s.sb.
		Select("COUNT(1)").
		From("map_stats").
		Where(sq.Eq{"match_id": matchID}).
		ToSql()
	if errQuery != nil {
		return false, errors.Join(errQuery, ErrCreateQuery)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, DBErr(err)
	}

	return count > 0, nil
}

// Insert writes the match and player rows in one transaction.
func (s *Store) Insert(ctx context.Context, p upload.Payload) error {
	matchQuery, matchArgs, errQuery := insertMatch(s.sb, p).ToSql()
	if errQuery != nil {
		return errors.Join(errQuery, ErrCreateQuery)
	}

	playerQuery, playerArgs, errQuery := insertPlayers(s.sb, p).ToSql()
	if errQuery != nil {
		return errors.Join(errQuery, ErrCreateQuery)
	}

	return s.wrapTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, matchQuery, matchArgs...); err != nil {
			return fmt.Errorf("insert map_stats %s: %w", p.MatchID, DBErr(err))
		}
		if _, err := tx.Exec(ctx, playerQuery, playerArgs...); err != nil {
			// A duplicate here is a bad payload, not an existing match.
			return fmt.Errorf("insert player_stats %s: %w", p.MatchID, err)
		}

		return nil
	})
}

func (s *Store) wrapTx(ctx context.Context, txFunc func(pgx.Tx) error) error {
	transaction, errTx := s.pool.Begin(ctx)
	if errTx != nil {
		return DBErr(errTx)
	}

	if err := txFunc(transaction); err != nil {
		if errRollback := transaction.Rollback(ctx); errRollback != nil {
			return errors.Join(err, errRollback)
		}

		return err
	}

	if err := transaction.Commit(ctx); err != nil {
		return DBErr(err)
	}

	return nil
}

func insertMatch(sb sq.StatementBuilderType, p upload.Payload) sq.InsertBuilder {
	return sb.
		Insert("map_stats").
		Columns("match_id", "map_name", "date_time", "won").
		Values(p.MatchID, p.MapStats.MapName, p.MapStats.DateTime, p.MapStats.Won)
}

func insertPlayers(sb sq.StatementBuilderType, p upload.Payload) sq.InsertBuilder {
	builder := sb.
		Insert("player_stats").
		Columns("match_id", "name",
			"kills_total", "deaths_total", "dmg", "utility_dmg", "headshot_kills_total",
			"ace_rounds_total", "quad_rounds_total", "triple_rounds_total", "mvps")

	for _, ps := range p.PlayerStats {
		builder = builder.Values(p.MatchID, ps.Name,
			ps.KillsTotal, ps.DeathsTotal, ps.Dmg, ps.UtilityDmg, ps.HeadshotKillsTotal,
			ps.AceRoundsTotal, ps.QuadRoundsTotal, ps.TripleRoundsTotal, ps.MVPs)
	}

	return builder
}

// DBErr maps a unique violation to upload.ErrConflict.
func DBErr(rootError error) error {
	if rootError == nil {
		return nil
	}

	var pgErr *pgconn.PgError

	if errors.As(rootError, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return errors.Join(upload.ErrConflict, rootError)
		default:
			return rootError
		}
	}

	return rootError
}
