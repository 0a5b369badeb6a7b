package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"team-ingest/internal/logging"
)

const (
	// API base URLs
	americasBaseURL = "https://americas.api.riotgames.com"
	na1BaseURL      = "https://na1.api.riotgames.com"

	// Dev keys allow 100 requests per 2 minutes; 1.2s between calls stays under it.
	defaultRateLimitDelay = 1200 * time.Millisecond
	defaultRetryCooldown  = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second

	// One try plus one retry on transport failure.
	maxAttempts = 2

	// The match-v5 ids endpoint requires start; we always read from the newest match.
	historyStart = 0
)

// Client issues serial, rate-spaced requests against the Riot API.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	rateLimitDelay time.Duration
	retryCooldown  time.Duration
	logger         *logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRegionURL sets the regional routing host (useful for testing)
func WithRegionURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRequestTimeout bounds each individual HTTP attempt
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimitDelay sets the pause after every answered request
func WithRateLimitDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.rateLimitDelay = d
	}
}

// WithRetryCooldown sets the wait before the single retry of a failed request
func WithRetryCooldown(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryCooldown = d
	}
}

func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new Riot API client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("riot API key is empty")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: americasBaseURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		rateLimitDelay: defaultRateLimitDelay,
		retryCooldown:  defaultRetryCooldown,
		logger:         logging.NewNop(),
		sleep:          sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.Named("riot")
	c.logger.Debug("client ready", "key", MaskKey(apiKey), "base_url", c.baseURL)
	return c, nil
}

// Fetch performs one GET with the retry policy. Transport failures are retried once
// after the cooldown; HTTP statuses are returned as-is and never retried.
func (c *Client) Fetch(ctx context.Context, rawURL string, class RequestClass) FetchOutcome {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("request failed, retrying after cooldown",
				"url", rawURL, "class", class.String(), "cooldown", c.retryCooldown, "error", lastErr)
			if err := c.sleep(ctx, c.retryCooldown); err != nil {
				return FetchOutcome{Kind: OutcomeFatal, Err: err}
			}
		}

		status, body, err := c.do(ctx, rawURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return FetchOutcome{Kind: OutcomeFatal, Err: ctxErr}
			}
			lastErr = err
			continue
		}

		if err := c.sleep(ctx, c.rateLimitDelay); err != nil {
			return FetchOutcome{Kind: OutcomeFatal, Err: err}
		}

		if status == http.StatusOK {
			return FetchOutcome{Kind: OutcomeOK, StatusCode: status, Body: body}
		}
		return FetchOutcome{
			Kind:       OutcomeRejected,
			StatusCode: status,
			Body:       body,
			Rejection:  CategorizeStatus(status),
		}
	}

	kind := OutcomeFatal
	if class == ClassDetail {
		kind = OutcomeSkip
	}
	return FetchOutcome{
		Kind: kind,
		Err:  errors.Wrapf(lastErr, "no response after %d attempts", maxAttempts),
	}
}

// do makes a single attempt and reads the whole body.
func (c *Client) do(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to read response body")
	}
	return resp.StatusCode, body, nil
}

// AccountURL builds the account-v1 by-riot-id URL.
func (c *Client) AccountURL(gameName, tagLine string) string {
	return fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.baseURL, url.PathEscape(gameName), url.PathEscape(tagLine))
}

// MatchIDsURL builds the match-v5 ids URL for a player.
func (c *Client) MatchIDsURL(puuid, queueType string, count int) string {
	q := url.Values{}
	q.Set("type", queueType)
	q.Set("start", strconv.Itoa(historyStart))
	q.Set("count", strconv.Itoa(count))
	return fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?%s",
		c.baseURL, url.PathEscape(puuid), q.Encode())
}

// MatchURL builds the match-v5 detail URL.
func (c *Client) MatchURL(matchID string) string {
	return fmt.Sprintf("%s/lol/match/v5/matches/%s", c.baseURL, url.PathEscape(matchID))
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) FetchOutcome {
	return c.Fetch(ctx, c.AccountURL(gameName, tagLine), ClassPrerequisite)
}

// GetMatchIDs fetches the most recent match IDs for a player
func (c *Client) GetMatchIDs(ctx context.Context, puuid, queueType string, count int) FetchOutcome {
	return c.Fetch(ctx, c.MatchIDsURL(puuid, queueType, count), ClassPrerequisite)
}

// GetMatch fetches the raw match detail payload
func (c *Client) GetMatch(ctx context.Context, matchID string) FetchOutcome {
	return c.Fetch(ctx, c.MatchURL(matchID), ClassDetail)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MaskKey masks an API key for display (e.g., "RGAPI-xxxx-xxxx" -> "RGAPI...xxxx")
func MaskKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
