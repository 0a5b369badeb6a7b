package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrPersistence marks every error coming out of a Store write. The pipeline treats
// it as fatal: the decomposed record shape and the table schema disagree.
var ErrPersistence = errors.New("persistence failure")

// MatchRecord is one row of matches: the info section without participants and teams.
type MatchRecord struct {
	MatchID   string `db:"match_id"`
	MatchJSON string `db:"match_json"`
}

// ParticipantRecord is one roster member's verbatim participant payload.
type ParticipantRecord struct {
	MatchID         string `db:"match_id"`
	PUUID           string `db:"puuid"`
	IsSub           bool   `db:"is_sub"`
	ParticipantJSON string `db:"participant_json"`
}

// TeamRecord is one side of a match with bans and objectives split out.
type TeamRecord struct {
	MatchID        string `db:"match_id"`
	TeamID         int    `db:"team_id"`
	IsMyTeam       bool   `db:"is_my_team"`
	TeamJSON       string `db:"team_json"`
	BansJSON       string `db:"bans_json"`
	ObjectivesJSON string `db:"objectives_json"`
}

// MatchBundle holds every row derived from one match. It is written in one transaction.
type MatchBundle struct {
	Match        MatchRecord
	Participants []ParticipantRecord
	Teams        []TeamRecord
}

// Counts is the number of stored rows per table.
type Counts struct {
	Matches      int `db:"matches"`
	Participants int `db:"participants"`
	Teams        int `db:"teams"`
}

// Store is the persistence gateway. Writes are upserts keyed by natural keys, so
// saving the same bundle twice leaves identical state. There is no row delete.
type Store interface {
	CreateTables(ctx context.Context) error
	// ResetTables drops and recreates all tables.
	ResetTables(ctx context.Context) error
	SaveMatch(ctx context.Context, b *MatchBundle) error
	MatchExists(ctx context.Context, matchID string) (bool, error)
	MatchIDs(ctx context.Context) ([]string, error)
	Counts(ctx context.Context) (Counts, error)
	Backend() string
	Close() error
}

// upsertPlan describes insert-or-replace by natural key for one table.
type upsertPlan struct {
	table   string
	keys    []string
	columns []string
}

var (
	matchesUpsert = upsertPlan{
		table:   "matches",
		keys:    []string{"match_id"},
		columns: []string{"match_id", "match_json"},
	}
	participantsUpsert = upsertPlan{
		table:   "participants",
		keys:    []string{"match_id", "puuid"},
		columns: []string{"match_id", "puuid", "is_sub", "participant_json"},
	}
	teamsUpsert = upsertPlan{
		table:   "teams",
		keys:    []string{"match_id", "team_id"},
		columns: []string{"match_id", "team_id", "is_my_team", "team_json", "bans_json", "objectives_json"},
	}
)

// replaceSQL renders INSERT OR REPLACE with sqlx named parameters (SQLite, DuckDB, libsql).
func (u upsertPlan) replaceSQL() string {
	named := make([]string, len(u.columns))
	for i, c := range u.columns {
		named[i] = ":" + c
	}
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		u.table, strings.Join(u.columns, ", "), strings.Join(named, ", "))
}

// onConflictSQL renders INSERT ... ON CONFLICT DO UPDATE with $n parameters (Postgres).
func (u upsertPlan) onConflictSQL() string {
	params := make([]string, len(u.columns))
	for i := range u.columns {
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	isKey := make(map[string]bool, len(u.keys))
	for _, k := range u.keys {
		isKey[k] = true
	}
	var sets []string
	for _, c := range u.columns {
		if !isKey[c] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		u.table, strings.Join(u.columns, ", "), strings.Join(params, ", "),
		strings.Join(u.keys, ", "), strings.Join(sets, ", "))
}

// Table definitions shared by the database/sql backends. Postgres uses the same shape.
var createTableQueries = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		match_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		is_sub BOOLEAN NOT NULL DEFAULT FALSE,
		participant_json TEXT NOT NULL,
		PRIMARY KEY (match_id, puuid)
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		match_id TEXT NOT NULL,
		team_id INTEGER NOT NULL,
		is_my_team BOOLEAN NOT NULL DEFAULT FALSE,
		team_json TEXT NOT NULL,
		bans_json TEXT NOT NULL,
		objectives_json TEXT NOT NULL,
		PRIMARY KEY (match_id, team_id)
	)`,
}

var tableNames = []string{"matches", "participants", "teams"}

const countsQuery = `SELECT
	(SELECT COUNT(*) FROM matches) AS matches,
	(SELECT COUNT(*) FROM participants) AS participants,
	(SELECT COUNT(*) FROM teams) AS teams`

func persistenceError(err error, msg string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, msg, args...), ErrPersistence)
}
