package collector

import (
	"bytes"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"

	"team-ingest/internal/db"
	"team-ingest/internal/roster"
)

var (
	// ErrIncompletePayload means info, info.participants, info.teams or a team's teamId is missing.
	ErrIncompletePayload = errors.New("incomplete match payload")
	// ErrMalformedPayload means the body is not the expected JSON structure.
	ErrMalformedPayload = errors.New("malformed match payload")
)

type rawObject map[string]json.RawMessage

type participantRef struct {
	PUUID  string `json:"puuid"`
	TeamID int    `json:"teamId"`
}

// Decompose splits a match-v5 payload into the rows stored for it. Only roster members
// become participant rows. The side of the first roster participant found is "my team";
// with no roster participant every team is marked false. Output is deterministic for a
// given payload, so repeated ingestion stores identical rows.
func Decompose(matchID string, payload []byte, identity *roster.Identity) (*db.MatchBundle, error) {
	var top rawObject
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "match %s", matchID), ErrMalformedPayload)
	}

	info, ok := decodeObject(top["info"])
	if !ok {
		return nil, errors.Wrapf(ErrIncompletePayload, "match %s: missing info", matchID)
	}
	participants, ok := decodeArray(info["participants"])
	if !ok {
		return nil, errors.Wrapf(ErrIncompletePayload, "match %s: missing info.participants", matchID)
	}
	teams, ok := decodeArray(info["teams"])
	if !ok {
		return nil, errors.Wrapf(ErrIncompletePayload, "match %s: missing info.teams", matchID)
	}

	matchInfo := make(rawObject, len(info))
	for k, v := range info {
		if k != "participants" && k != "teams" {
			matchInfo[k] = v
		}
	}
	matchJSON, err := json.Marshal(matchInfo)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "match %s: encode info", matchID), ErrMalformedPayload)
	}

	bundle := &db.MatchBundle{
		Match: db.MatchRecord{MatchID: matchID, MatchJSON: string(matchJSON)},
	}

	myTeam, haveMyTeam := 0, false
	for _, raw := range participants {
		var ref participantRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "match %s: participant", matchID), ErrMalformedPayload)
		}
		if !identity.Contains(ref.PUUID) {
			continue
		}
		if !haveMyTeam {
			myTeam, haveMyTeam = ref.TeamID, true
		}
		bundle.Participants = append(bundle.Participants, db.ParticipantRecord{
			MatchID:         matchID,
			PUUID:           ref.PUUID,
			IsSub:           identity.IsSubstitute(ref.PUUID),
			ParticipantJSON: compact(raw),
		})
	}

	for _, raw := range teams {
		team, ok := decodeObject(raw)
		if !ok {
			return nil, errors.Wrapf(ErrMalformedPayload, "match %s: team is not an object", matchID)
		}

		v, ok := team["teamId"]
		if !ok || string(v) == "null" {
			return nil, errors.Wrapf(ErrIncompletePayload, "match %s: team without teamId", matchID)
		}
		var teamID int
		if err := json.Unmarshal(v, &teamID); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "match %s: teamId", matchID), ErrMalformedPayload)
		}

		bans := take(team, "bans")
		objectives := take(team, "objectives")
		rest, err := json.Marshal(team)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "match %s: encode team", matchID), ErrMalformedPayload)
		}

		bundle.Teams = append(bundle.Teams, db.TeamRecord{
			MatchID:        matchID,
			TeamID:         teamID,
			IsMyTeam:       haveMyTeam && teamID == myTeam,
			TeamJSON:       string(rest),
			BansJSON:       bans,
			ObjectivesJSON: objectives,
		})
	}

	return bundle, nil
}

// decodeObject decodes raw as a non-null JSON object.
func decodeObject(raw json.RawMessage) (rawObject, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj rawObject
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// decodeArray decodes raw as a non-null JSON array. An empty array is present.
func decodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	return items, true
}

// take removes key from obj and returns its compacted JSON, or "null" if absent.
func take(obj rawObject, key string) string {
	v, ok := obj[key]
	if !ok {
		return "null"
	}
	delete(obj, key)
	return compact(v)
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
