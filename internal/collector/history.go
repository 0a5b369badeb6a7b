package collector

import (
	"context"

	json "github.com/goccy/go-json"

	"team-ingest/internal/logging"
	"team-ingest/internal/riot"
	"team-ingest/internal/roster"
)

// PlayerHistory is one resolved player's recent match IDs, newest first as returned.
type PlayerHistory struct {
	Member   roster.Member
	PUUID    string
	MatchIDs []string
}

// HistoryOptions selects which matches are listed per player.
type HistoryOptions struct {
	QueueType string
	Count     int
}

// CollectHistories fetches each resolved player's match IDs in roster order. A rejected
// request means that player contributes nothing; a lost network or a body that is not a
// list of IDs aborts the run.
func CollectHistories(ctx context.Context, api RiotAPI, identity *roster.Identity, opts HistoryOptions, logger *logging.Logger) ([]PlayerHistory, error) {
	logger = logger.Named("history")
	histories := make([]PlayerHistory, 0, identity.Len())

	for _, puuid := range identity.PUUIDs() {
		member, _ := identity.MemberFor(puuid)
		logger.Info("collecting match IDs", "player", member.RiotID(), "count", opts.Count)

		out := api.GetMatchIDs(ctx, puuid, opts.QueueType, opts.Count)
		switch out.Kind {
		case riot.OutcomeOK:
		case riot.OutcomeRejected:
			logRejection(logger, out, "player", member.RiotID())
			continue
		default:
			return nil, prerequisiteError(out.Err, "match history for %s", member.RiotID())
		}

		var ids []string
		if err := json.Unmarshal(out.Body, &ids); err != nil {
			return nil, prerequisiteError(err, "malformed match history for %s", member.RiotID())
		}

		histories = append(histories, PlayerHistory{Member: member, PUUID: puuid, MatchIDs: ids})
	}

	logger.Info("match IDs collected", "players", len(histories))
	return histories, nil
}
