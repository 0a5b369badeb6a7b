// Package collector runs the shared-match pipeline: resolve the roster, gather match
// histories, select matches enough members played together and ingest their details.
package collector

import (
	"context"

	"github.com/cockroachdb/errors"

	"team-ingest/internal/logging"
	"team-ingest/internal/riot"
)

// RiotAPI is the subset of riot.Client the pipeline calls.
type RiotAPI interface {
	GetAccountByRiotID(ctx context.Context, gameName, tagLine string) riot.FetchOutcome
	GetMatchIDs(ctx context.Context, puuid, queueType string, count int) riot.FetchOutcome
	GetMatch(ctx context.Context, matchID string) riot.FetchOutcome
}

var (
	// ErrPrerequisite marks failures of identity or history lookups that end the run.
	ErrPrerequisite = errors.New("prerequisite lookup failed")
	// ErrDriftCheck marks a run stopped because no selected match could be used for the
	// schema check, or the reference could not be written.
	ErrDriftCheck = errors.New("schema check failed")
)

func prerequisiteError(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrPrerequisite)
}

// logRejection writes the categorized message for a non-200 response.
func logRejection(logger *logging.Logger, out riot.FetchOutcome, args ...any) {
	args = append(args, "status", out.StatusCode, "reason", string(out.Rejection))
	if out.Rejection == riot.RejectOther {
		args = append(args, "response", out.Snippet())
	}
	logger.Warn(out.Rejection.Describe(), args...)
}
