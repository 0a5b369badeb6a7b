package collector

import (
	"context"

	json "github.com/goccy/go-json"

	"team-ingest/internal/logging"
	"team-ingest/internal/riot"
	"team-ingest/internal/roster"
)

// ResolveIdentities looks up every member's PUUID in roster order. A rejected lookup or
// a response without a puuid drops that member only. Losing the network or receiving
// a body that is not an account object aborts the run.
func ResolveIdentities(ctx context.Context, api RiotAPI, members roster.Roster, logger *logging.Logger) (*roster.Identity, error) {
	logger = logger.Named("resolver")
	identity := roster.NewIdentity()

	for _, m := range members {
		logger.Info("collecting PUUID", "player", m.RiotID())

		out := api.GetAccountByRiotID(ctx, m.Name, m.Tag)
		switch out.Kind {
		case riot.OutcomeOK:
		case riot.OutcomeRejected:
			logRejection(logger, out, "player", m.RiotID())
			continue
		default:
			return nil, prerequisiteError(out.Err, "identity lookup for %s", m.RiotID())
		}

		var account riot.AccountResponse
		if err := json.Unmarshal(out.Body, &account); err != nil {
			return nil, prerequisiteError(err, "malformed account response for %s", m.RiotID())
		}
		if account.PUUID == "" {
			logger.Warn("account response has no puuid, dropping player", "player", m.RiotID())
			continue
		}

		if existing, ok := identity.MemberFor(account.PUUID); ok {
			logger.Warn("two roster entries resolve to the same account, keeping the first",
				"player", m.RiotID(), "kept", existing.RiotID())
		}
		if !identity.Add(m, account.PUUID) {
			kept, _ := identity.PUUIDFor(m.Name)
			logger.Warn("roster name already resolved under another tag, dropping player",
				"player", m.RiotID(), "kept_puuid", kept)
		}
	}

	if identity.Len() == 0 && len(members) > 0 {
		logger.Warn("no roster member resolved")
	} else {
		logger.Info("PUUIDs collected", "resolved", identity.Len(), "roster", len(members))
	}
	return identity, nil
}
