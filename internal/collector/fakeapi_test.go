package collector

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"team-ingest/internal/riot"
	"team-ingest/internal/roster"
)

// fakeRiot serves the three Riot endpoints the pipeline uses from in-memory maps.
type fakeRiot struct {
	mu sync.Mutex

	accounts      map[string]string // "Name#TAG" -> puuid
	accountStatus map[string]int
	histories     map[string][]string // puuid -> match ids
	historyStatus map[string]int
	matches       map[string]string // match id -> payload
	matchStatus   map[string]int
	matchDropped  map[string]bool // close the connection without answering

	hits map[string]int
}

func newFakeRiot() *fakeRiot {
	return &fakeRiot{
		accounts:      map[string]string{},
		accountStatus: map[string]int{},
		histories:     map[string][]string{},
		historyStatus: map[string]int{},
		matches:       map[string]string{},
		matchStatus:   map[string]int{},
		matchDropped:  map[string]bool{},
		hits:          map[string]int{},
	}
}

func (f *fakeRiot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[r.URL.Path]++

	const (
		accountPrefix = "/riot/account/v1/accounts/by-riot-id/"
		historyPrefix = "/lol/match/v5/matches/by-puuid/"
		matchPrefix   = "/lol/match/v5/matches/"
	)

	switch path := r.URL.Path; {
	case strings.HasPrefix(path, accountPrefix):
		parts := strings.SplitN(strings.TrimPrefix(path, accountPrefix), "/", 2)
		key := parts[0] + "#" + parts[1]
		if status, ok := f.accountStatus[key]; ok {
			http.Error(w, `{"status":{"status_code":404}}`, status)
			return
		}
		puuid, ok := f.accounts[key]
		if !ok {
			http.Error(w, `{"status":{"status_code":404}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, riot.AccountResponse{PUUID: puuid, GameName: parts[0], TagLine: parts[1]})

	case strings.HasPrefix(path, historyPrefix):
		puuid := strings.TrimSuffix(strings.TrimPrefix(path, historyPrefix), "/ids")
		if status, ok := f.historyStatus[puuid]; ok {
			http.Error(w, `{}`, status)
			return
		}
		ids := f.histories[puuid]
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, ids)

	case strings.HasPrefix(path, matchPrefix):
		id := strings.TrimPrefix(path, matchPrefix)
		if f.matchDropped[id] {
			dropConnection(w)
			return
		}
		if status, ok := f.matchStatus[id]; ok {
			http.Error(w, `{"status":{"message":"Data not found"}}`, status)
			return
		}
		payload, ok := f.matches[id]
		if !ok {
			http.Error(w, `{"status":{"message":"Data not found"}}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(payload))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRiot) matchHits(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits["/lol/match/v5/matches/"+id]
}

func dropConnection(w http.ResponseWriter) {
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		conn.Close()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// startFakeRiot returns a client with no delays pointed at f.
func startFakeRiot(t *testing.T, f *fakeRiot) *riot.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := riot.NewClient("RGAPI-test-key",
		riot.WithRegionURL(srv.URL),
		riot.WithRateLimitDelay(0),
		riot.WithRetryCooldown(0),
	)
	require.NoError(t, err)
	return c
}

type player struct {
	puuid string
	team  int
}

// matchPayload builds a match-v5 detail body with the given participants.
func matchPayload(id string, players ...player) string {
	participants := make([]map[string]any, 0, len(players))
	for _, p := range players {
		participants = append(participants, map[string]any{
			"puuid":        p.puuid,
			"teamId":       p.team,
			"kills":        3,
			"championName": "Ahri",
			"challenges":   map[string]any{"kda": 2.5},
		})
	}

	team := func(id int, win bool) map[string]any {
		return map[string]any{
			"teamId":     id,
			"win":        win,
			"bans":       []any{map[string]any{"championId": id / 10, "pickTurn": 1}},
			"objectives": map[string]any{"baron": map[string]any{"first": win, "kills": 1}},
		}
	}

	body, _ := json.Marshal(map[string]any{
		"metadata": map[string]any{"matchId": id},
		"info": map[string]any{
			"gameDuration": 1800,
			"gameVersion":  "15.24.1",
			"participants": participants,
			"teams":        []any{team(100, true), team(200, false)},
		},
	})
	return string(body)
}

const testRoster = "Alpha#NA1,Bravo#NA1,Charlie#NA1,Delta#NA1,Echo#NA1:sub"

func mustRoster(t *testing.T) roster.Roster {
	t.Helper()
	r, err := roster.Parse(testRoster)
	require.NoError(t, err)
	return r
}

// seedAccounts registers every test roster member as puuid-<lowercase name>.
func seedAccounts(f *fakeRiot) {
	for _, name := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"} {
		f.accounts[name+"#NA1"] = "puuid-" + strings.ToLower(name)
	}
}

func identityOf(members ...roster.Member) *roster.Identity {
	id := roster.NewIdentity()
	for _, m := range members {
		id.Add(m, "puuid-"+strings.ToLower(m.Name))
	}
	return id
}
