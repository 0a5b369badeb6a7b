package storage

import (
	"time"

	json "github.com/goccy/go-json"
)

// RawPayload is one archived match-v5 detail response, one JSONL line per match.
type RawPayload struct {
	MatchID   string          `json:"matchId"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Payload   json.RawMessage `json:"payload"`
}
