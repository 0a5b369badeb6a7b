package db

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

// SQLStore persists matches through database/sql. It serves SQLite, DuckDB and Turso,
// which all understand INSERT OR REPLACE against a primary key.
type SQLStore struct {
	db      *sqlx.DB
	backend string
}

func newSQLStore(db *sqlx.DB, backend string) *SQLStore {
	return &SQLStore{db: db, backend: backend}
}

func (s *SQLStore) Backend() string { return s.backend }

// Close closes the underlying connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle for custom queries
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// CreateTables creates the required tables if they don't exist
func (s *SQLStore) CreateTables(ctx context.Context) error {
	for _, q := range createTableQueries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "failed to create table")
		}
	}
	return nil
}

func (s *SQLStore) ResetTables(ctx context.Context) error {
	for _, t := range tableNames {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return errors.Wrapf(err, "failed to drop %s", t)
		}
	}
	return s.CreateTables(ctx)
}

// SaveMatch upserts the match, its roster participants and both teams in one transaction.
func (s *SQLStore) SaveMatch(ctx context.Context, b *MatchBundle) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceError(err, "failed to begin transaction for %s", b.Match.MatchID)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, matchesUpsert.replaceSQL(), b.Match); err != nil {
		return persistenceError(err, "failed to upsert match %s", b.Match.MatchID)
	}

	participantSQL := participantsUpsert.replaceSQL()
	for _, p := range b.Participants {
		if _, err := tx.NamedExecContext(ctx, participantSQL, p); err != nil {
			return persistenceError(err, "failed to upsert participant %s/%s", p.MatchID, p.PUUID)
		}
	}

	teamSQL := teamsUpsert.replaceSQL()
	for _, t := range b.Teams {
		if _, err := tx.NamedExecContext(ctx, teamSQL, t); err != nil {
			return persistenceError(err, "failed to upsert team %s/%d", t.MatchID, t.TeamID)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistenceError(err, "failed to commit %s", b.Match.MatchID)
	}
	return nil
}

func (s *SQLStore) MatchExists(ctx context.Context, matchID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind("SELECT COUNT(*) FROM matches WHERE match_id = ?"), matchID)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check match %s", matchID)
	}
	return n > 0, nil
}

func (s *SQLStore) MatchIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, "SELECT match_id FROM matches ORDER BY match_id"); err != nil {
		return nil, errors.Wrap(err, "failed to list matches")
	}
	return ids, nil
}

func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.GetContext(ctx, &c, countsQuery); err != nil {
		return Counts{}, errors.Wrap(err, "failed to count rows")
	}
	return c, nil
}

// Participants returns stored participant rows for a match, ordered by puuid.
func (s *SQLStore) Participants(ctx context.Context, matchID string) ([]ParticipantRecord, error) {
	var out []ParticipantRecord
	q := s.db.Rebind("SELECT match_id, puuid, is_sub, participant_json FROM participants WHERE match_id = ? ORDER BY puuid")
	if err := s.db.SelectContext(ctx, &out, q, matchID); err != nil {
		return nil, errors.Wrapf(err, "failed to list participants for %s", matchID)
	}
	return out, nil
}

// Teams returns stored team rows for a match, ordered by team id.
func (s *SQLStore) Teams(ctx context.Context, matchID string) ([]TeamRecord, error) {
	var out []TeamRecord
	q := s.db.Rebind("SELECT match_id, team_id, is_my_team, team_json, bans_json, objectives_json FROM teams WHERE match_id = ? ORDER BY team_id")
	if err := s.db.SelectContext(ctx, &out, q, matchID); err != nil {
		return nil, errors.Wrapf(err, "failed to list teams for %s", matchID)
	}
	return out, nil
}
