package db

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists matches through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool for dbURL and verifies it with a ping.
func NewPostgres(ctx context.Context, dbURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Backend() string { return "postgres" }

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Pool returns the underlying connection pool for custom queries
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) CreateTables(ctx context.Context) error {
	for _, q := range createTableQueries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "failed to create table")
		}
	}
	return nil
}

func (s *PostgresStore) ResetTables(ctx context.Context) error {
	for _, t := range tableNames {
		if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return errors.Wrapf(err, "failed to drop %s", t)
		}
	}
	return s.CreateTables(ctx)
}

// SaveMatch upserts the match, its roster participants and both teams in one transaction.
func (s *PostgresStore) SaveMatch(ctx context.Context, b *MatchBundle) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistenceError(err, "failed to begin transaction for %s", b.Match.MatchID)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(matchesUpsert.onConflictSQL(), b.Match.MatchID, b.Match.MatchJSON)
	for _, p := range b.Participants {
		batch.Queue(participantsUpsert.onConflictSQL(), p.MatchID, p.PUUID, p.IsSub, p.ParticipantJSON)
	}
	for _, t := range b.Teams {
		batch.Queue(teamsUpsert.onConflictSQL(), t.MatchID, t.TeamID, t.IsMyTeam, t.TeamJSON, t.BansJSON, t.ObjectivesJSON)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return persistenceError(err, "failed to upsert %s", b.Match.MatchID)
	}
	if err := tx.Commit(ctx); err != nil {
		return persistenceError(err, "failed to commit %s", b.Match.MatchID)
	}
	return nil
}

func (s *PostgresStore) MatchExists(ctx context.Context, matchID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM matches WHERE match_id = $1)", matchID).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check match %s", matchID)
	}
	return exists, nil
}

func (s *PostgresStore) MatchIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT match_id FROM matches ORDER BY match_id")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list matches")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan match ids")
	}
	return ids, nil
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.pool.QueryRow(ctx, countsQuery).Scan(&c.Matches, &c.Participants, &c.Teams); err != nil {
		return Counts{}, errors.Wrap(err, "failed to count rows")
	}
	return c, nil
}
