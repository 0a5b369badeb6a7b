package collector

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"team-ingest/internal/db"
	"team-ingest/internal/logging"
	"team-ingest/internal/riot"
	"team-ingest/internal/roster"
	"team-ingest/internal/schema"
)

// Notifier receives operator-facing events. Delivery failures are logged only.
type Notifier interface {
	NotifyDrift(ctx context.Context, matchID string, drift schema.Drift) error
	NotifyRunSummary(ctx context.Context, summary Summary) error
}

// Settings are the run parameters.
type Settings struct {
	Roster           roster.Roster
	QueueType        string
	MatchCount       int
	MinSharedPlayers int
	SkipExisting     bool
}

// Summary describes a finished run.
type Summary struct {
	RosterSize    int
	Resolved      int
	Histories     int
	Shared        int
	AlreadyStored int
	Stored        int
	Skipped       int
	Baseline      bool
	Drift         schema.Drift
	Counts        db.Counts
	Duration      time.Duration
}

// Pipeline wires the stages of one run. Nothing is carried between runs.
type Pipeline struct {
	API      RiotAPI
	Store    db.Store
	Detector *schema.Detector
	Archive  Archiver
	Notifier Notifier
	Logger   *logging.Logger
	Settings Settings
}

// Run executes resolve, history, select, schema check and ingest in order.
// An empty selection is a successful run with nothing stored.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	started := time.Now()
	summary := &Summary{RosterSize: len(p.Settings.Roster)}

	identity, err := ResolveIdentities(ctx, p.API, p.Settings.Roster, logger)
	if err != nil {
		return nil, err
	}
	summary.Resolved = identity.Len()

	histories, err := CollectHistories(ctx, p.API, identity, HistoryOptions{
		QueueType: p.Settings.QueueType,
		Count:     p.Settings.MatchCount,
	}, logger)
	if err != nil {
		return nil, err
	}
	summary.Histories = len(histories)

	shared := SelectShared(histories, p.Settings.MinSharedPlayers)
	summary.Shared = len(shared)
	logger.Info("shared games found", "count", len(shared), "threshold", p.Settings.MinSharedPlayers)

	if p.Settings.SkipExisting && len(shared) > 0 {
		known, err := db.LoadKnownMatches(ctx, p.Store)
		if err != nil {
			return nil, err
		}
		shared, err = filterKnown(ctx, known, shared)
		if err != nil {
			return nil, err
		}
		summary.AlreadyStored = summary.Shared - len(shared)
		logger.Info("skipping already stored matches", "stored_total", known.Len(),
			"skipped", summary.AlreadyStored, "remaining", len(shared))
	}

	if len(shared) == 0 {
		logger.Info("no shared matches found")
		return p.finish(ctx, logger, summary, started)
	}

	first, payload, err := p.checkSchema(ctx, logger, identity, shared, summary)
	if err != nil {
		return nil, err
	}
	// Candidates before first were already skipped.
	remaining := shared[first:]

	ingestor := NewIngestor(p.API, p.Store, identity, logger)
	if p.Archive != nil {
		ingestor.WithArchive(p.Archive)
	}
	stats, err := ingestor.Ingest(ctx, remaining, map[string][]byte{remaining[0]: payload})
	summary.Stored = stats.Stored
	summary.Skipped += stats.Skipped
	if err != nil {
		return nil, err
	}

	return p.finish(ctx, logger, summary, started)
}

// checkSchema runs the drift check on the first selected match that yields a usable
// payload and returns its index and body. Rejected, incomplete or malformed candidates
// are logged, counted as skipped and the next one is tried. A candidate that gets no
// response after the retry, a reference that cannot be written, or running out of
// candidates ends the run.
func (p *Pipeline) checkSchema(ctx context.Context, logger *logging.Logger, identity *roster.Identity, candidates []string, summary *Summary) (int, []byte, error) {
	for i, matchID := range candidates {
		mlog := logger.With("match_id", matchID)

		out := p.API.GetMatch(ctx, matchID)
		switch out.Kind {
		case riot.OutcomeOK:
		case riot.OutcomeRejected:
			logRejection(mlog, out)
			summary.Skipped++
			continue
		default:
			cause := out.Err
			if cause == nil {
				cause = errors.Newf("outcome %s", out.Kind)
			}
			return 0, nil, errors.Mark(errors.Wrapf(cause, "schema check fetch of %s", matchID), ErrDriftCheck)
		}

		if _, err := Decompose(matchID, out.Body, identity); err != nil {
			mlog.Warn("payload unusable for schema check, trying next match", "error", err)
			summary.Skipped++
			continue
		}

		result, err := p.Detector.Check(out.Body)
		if err != nil {
			return 0, nil, errors.Mark(errors.Wrapf(err, "schema check on %s", matchID), ErrDriftCheck)
		}
		summary.Baseline = result.Baseline
		summary.Drift = result.Drift

		if !result.Drift.Empty() && p.Notifier != nil {
			if err := p.Notifier.NotifyDrift(ctx, matchID, result.Drift); err != nil {
				mlog.Warn("failed to send drift notification", "error", err)
			}
		}
		return i, out.Body, nil
	}
	return 0, nil, errors.Wrapf(ErrDriftCheck, "none of %d selected matches returned a usable payload", len(candidates))
}

func (p *Pipeline) finish(ctx context.Context, logger *logging.Logger, summary *Summary, started time.Time) (*Summary, error) {
	counts, err := p.Store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	summary.Counts = counts
	summary.Duration = time.Since(started)

	logger.Info("run complete",
		"stored", summary.Stored,
		"skipped", summary.Skipped,
		"total_matches", counts.Matches,
		"total_participants", counts.Participants,
		"total_teams", counts.Teams,
		"duration", summary.Duration.Round(time.Millisecond))

	if p.Notifier != nil {
		if err := p.Notifier.NotifyRunSummary(ctx, *summary); err != nil {
			logger.Warn("failed to send run summary", "error", err)
		}
	}
	return summary, nil
}

func filterKnown(ctx context.Context, known *db.KnownMatches, matchIDs []string) ([]string, error) {
	out := make([]string, 0, len(matchIDs))
	for _, id := range matchIDs {
		stored, err := known.Contains(ctx, id)
		if err != nil {
			return nil, err
		}
		if !stored {
			out = append(out, id)
		}
	}
	return out, nil
}
