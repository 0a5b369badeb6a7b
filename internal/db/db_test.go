package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "matches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBundle(matchID string) *MatchBundle {
	return &MatchBundle{
		Match: MatchRecord{MatchID: matchID, MatchJSON: `{"gameDuration":1800}`},
		Participants: []ParticipantRecord{
			{MatchID: matchID, PUUID: "p1", ParticipantJSON: `{"kills":3}`},
			{MatchID: matchID, PUUID: "p2", IsSub: true, ParticipantJSON: `{"kills":1}`},
		},
		Teams: []TeamRecord{
			{MatchID: matchID, TeamID: 100, IsMyTeam: true, TeamJSON: `{"win":true}`, BansJSON: `[]`, ObjectivesJSON: `{}`},
			{MatchID: matchID, TeamID: 200, TeamJSON: `{"win":false}`, BansJSON: `[]`, ObjectivesJSON: `{}`},
		},
	}
}

func TestDetectBackend(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost:5432/db", BackendPostgres},
		{"postgresql://localhost/db", BackendPostgres},
		{"libsql://team.turso.io", BackendTurso},
		{"https://team.turso.io", BackendTurso},
		{"duckdb://data/matches.duckdb", BackendDuckDB},
		{"matches.DUCKDB", BackendDuckDB},
		{"team_matches.db", BackendSQLite},
		{"", BackendSQLite},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectBackend(tt.dsn), tt.dsn)
	}
}

func TestTursoDSN(t *testing.T) {
	assert.Equal(t, "libsql://x.turso.io", tursoDSN("libsql://x.turso.io", ""))
	assert.Equal(t, "libsql://x.turso.io?authToken=abc", tursoDSN("libsql://x.turso.io", "abc"))
	assert.Equal(t, "libsql://x.turso.io?tls=1&authToken=abc", tursoDSN("libsql://x.turso.io?tls=1", "abc"))
	assert.Equal(t, "libsql://x.turso.io?authToken=old", tursoDSN("libsql://x.turso.io?authToken=old", "new"))
}

func TestUpsertSQL(t *testing.T) {
	assert.Equal(t,
		"INSERT OR REPLACE INTO participants (match_id, puuid, is_sub, participant_json) VALUES (:match_id, :puuid, :is_sub, :participant_json)",
		participantsUpsert.replaceSQL())
	assert.Equal(t,
		"INSERT INTO matches (match_id, match_json) VALUES ($1, $2) ON CONFLICT (match_id) DO UPDATE SET match_json = EXCLUDED.match_json",
		matchesUpsert.onConflictSQL())
}

func TestSQLStore_SaveMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveMatch(ctx, sampleBundle("NA1_1")))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Matches: 1, Participants: 2, Teams: 2}, counts)

	parts, err := s.Participants(ctx, "NA1_1")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.False(t, parts[0].IsSub)
	assert.True(t, parts[1].IsSub)

	teams, err := s.Teams(ctx, "NA1_1")
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.True(t, teams[0].IsMyTeam)
	assert.Equal(t, 200, teams[1].TeamID)
	assert.False(t, teams[1].IsMyTeam)
}

func TestSQLStore_SaveMatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveMatch(ctx, sampleBundle("NA1_1")))
	require.NoError(t, s.SaveMatch(ctx, sampleBundle("NA1_1")))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Matches: 1, Participants: 2, Teams: 2}, counts)
}

func TestSQLStore_SaveMatchReplacesRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveMatch(ctx, sampleBundle("NA1_1")))

	updated := sampleBundle("NA1_1")
	updated.Participants[0].ParticipantJSON = `{"kills":9}`
	require.NoError(t, s.SaveMatch(ctx, updated))

	parts, err := s.Participants(ctx, "NA1_1")
	require.NoError(t, err)
	assert.Equal(t, `{"kills":9}`, parts[0].ParticipantJSON)
}

func TestSQLStore_SaveMatchFailureIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.DB().ExecContext(ctx, "DROP TABLE teams")
	require.NoError(t, err)

	err = s.SaveMatch(ctx, sampleBundle("NA1_1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))

	// The transaction rolled back, so the match row is gone too.
	exists, err := s.MatchExists(ctx, "NA1_1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLStore_ResetTables(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveMatch(ctx, sampleBundle("NA1_1")))
	require.NoError(t, s.ResetTables(ctx))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestKnownMatches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveMatch(ctx, sampleBundle("NA1_1")))
	require.NoError(t, s.SaveMatch(ctx, sampleBundle("NA1_2")))

	known, err := LoadKnownMatches(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, known.Len())

	ok, err := known.Contains(ctx, "NA1_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = known.Contains(ctx, "NA1_3")
	require.NoError(t, err)
	assert.False(t, ok)

	// Added to the filter but not stored: the exact check wins.
	known.Add("NA1_4")
	ok, err = known.Contains(ctx, "NA1_4")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "team.db"), Options{})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, BackendSQLite, store.Backend())
	ids, err := store.MatchIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOpen_DuckDB(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "team.duckdb"), Options{})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, BackendDuckDB, store.Backend())
	require.NoError(t, store.SaveMatch(ctx, sampleBundle("NA1_1")))
	require.NoError(t, store.SaveMatch(ctx, sampleBundle("NA1_1")))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Matches: 1, Participants: 2, Teams: 2}, counts)
}
