package collector

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"team-ingest/internal/db"
	"team-ingest/internal/logging"
	"team-ingest/internal/riot"
	"team-ingest/internal/roster"
)

// Archiver keeps a copy of every fetched detail payload.
type Archiver interface {
	Archive(matchID string, payload []byte) error
}

// IngestStats counts what happened to the selected matches.
type IngestStats struct {
	Stored  int
	Skipped int
}

// Ingestor fetches selected matches one at a time and stores their decomposed rows.
type Ingestor struct {
	api      RiotAPI
	store    db.Store
	identity *roster.Identity
	archive  Archiver
	logger   *logging.Logger
	now      func() time.Time
}

func NewIngestor(api RiotAPI, store db.Store, identity *roster.Identity, logger *logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{
		api:      api,
		store:    store,
		identity: identity,
		logger:   logger.Named("ingest"),
		now:      time.Now,
	}
}

// WithArchive sets where raw payloads are copied. Archive errors are logged, not fatal.
func (ing *Ingestor) WithArchive(a Archiver) *Ingestor {
	ing.archive = a
	return ing
}

// Ingest processes matchIDs in order. Payloads already fetched are taken from
// prefetched instead of being requested again. A match that cannot be fetched or is
// incomplete is logged and skipped; a store failure or cancellation stops ingestion.
func (ing *Ingestor) Ingest(ctx context.Context, matchIDs []string, prefetched map[string][]byte) (IngestStats, error) {
	var stats IngestStats
	start := ing.now()
	total := len(matchIDs)

	for i, matchID := range matchIDs {
		n := i + 1
		if n <= 2 {
			ing.logger.Info("processing match", "n", n, "total", total, "match_id", matchID)
		} else {
			perMatch := ing.now().Sub(start) / time.Duration(n)
			remaining := perMatch * time.Duration(total-n)
			ing.logger.Info("processing match", "n", n, "total", total, "match_id", matchID,
				"eta", remaining.Round(time.Second))
		}

		mlog := ing.logger.With("match_id", matchID)

		payload, ok := prefetched[matchID]
		if !ok {
			var err error
			payload, err = ing.fetch(ctx, mlog, matchID)
			if err != nil {
				return stats, err
			}
			if payload == nil {
				stats.Skipped++
				continue
			}
		}

		if ing.archive != nil {
			if err := ing.archive.Archive(matchID, payload); err != nil {
				mlog.Warn("failed to archive raw payload", "error", err)
			}
		}

		bundle, err := Decompose(matchID, payload, ing.identity)
		if err != nil {
			mlog.Warn("skipping match", "error", err)
			stats.Skipped++
			continue
		}

		if err := ing.store.SaveMatch(ctx, bundle); err != nil {
			return stats, errors.Wrapf(err, "store match %s", matchID)
		}
		stats.Stored++
		mlog.Debug("match stored",
			"participants", len(bundle.Participants), "teams", len(bundle.Teams))
	}

	return stats, nil
}

// fetch returns the payload, nil for a skipped match, or an error that ends the run.
func (ing *Ingestor) fetch(ctx context.Context, mlog *logging.Logger, matchID string) ([]byte, error) {
	out := ing.api.GetMatch(ctx, matchID)
	switch out.Kind {
	case riot.OutcomeOK:
		return out.Body, nil
	case riot.OutcomeRejected:
		logRejection(mlog, out)
		return nil, nil
	case riot.OutcomeSkip:
		mlog.Warn("no response for match, skipping", "error", out.Err)
		return nil, nil
	default:
		return nil, errors.Wrapf(out.Err, "fetch match %s", matchID)
	}
}
