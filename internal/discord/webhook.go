// Package discord posts pipeline events to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"

	"team-ingest/internal/collector"
	"team-ingest/internal/riot"
	"team-ingest/internal/schema"
)

const (
	// Colors for Discord embeds
	colorRed    = 15158332 // 0xE74C3C - for errors
	colorGreen  = 5763719  // 0x57F287 - for success
	colorYellow = 16705372 // 0xFEE75C - for warnings

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3

	// Discord rejects embed field values longer than this.
	maxFieldValue = 1024
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// NewDriftPayload reports keys that appeared in or vanished from the match payload.
func NewDriftPayload(matchID string, drift schema.Drift) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:       "Match payload schema changed",
				Description: fmt.Sprintf("Detected on `%s`. Review field extraction before relying on new rows.", matchID),
				Color:       colorYellow,
				Fields: []EmbedField{
					{Name: fmt.Sprintf("Added (%d)", len(drift.Added)), Value: keyList(drift.Added)},
					{Name: fmt.Sprintf("Removed (%d)", len(drift.Removed)), Value: keyList(drift.Removed)},
				},
				Footer:    &EmbedFooter{Text: "The schema reference has been updated to the new payload."},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewRunSummaryPayload describes a finished ingestion run.
func NewRunSummaryPayload(s collector.Summary) WebhookPayload {
	color := colorGreen
	if s.Skipped > 0 || !s.Drift.Empty() {
		color = colorYellow
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "Team ingest finished",
				Color: color,
				Fields: []EmbedField{
					{Name: "Players", Value: fmt.Sprintf("%d of %d resolved", s.Resolved, s.RosterSize), Inline: true},
					{Name: "Shared Matches", Value: formatNumber(s.Shared), Inline: true},
					{Name: "Stored", Value: formatNumber(s.Stored), Inline: true},
					{Name: "Skipped", Value: formatNumber(s.Skipped), Inline: true},
					{Name: "Already Stored", Value: formatNumber(s.AlreadyStored), Inline: true},
					{Name: "Runtime", Value: formatDuration(s.Duration), Inline: true},
					{
						Name: "Totals",
						Value: fmt.Sprintf("%s matches, %s participants, %s teams",
							formatNumber(s.Counts.Matches), formatNumber(s.Counts.Participants), formatNumber(s.Counts.Teams)),
					},
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewKeyRejectedPayload creates a payload for an API key that failed the preflight check.
func NewKeyRejectedPayload(apiKey string) WebhookPayload {
	return WebhookPayload{
		Content: "@here API Key Rejected!",
		Embeds: []Embed{
			{
				Title:       "🔑 API Key Rejected",
				Description: "The Riot API refused the configured key. No data was collected.",
				Color:       colorRed,
				Fields: []EmbedField{
					{Name: "Key", Value: fmt.Sprintf("`%s`", riot.MaskKey(apiKey)), Inline: true},
				},
				Footer:    &EmbedFooter{Text: "Set a fresh RIOT_API_KEY and rerun."},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

func (c *WebhookClient) NotifyDrift(ctx context.Context, matchID string, drift schema.Drift) error {
	return c.sendPayload(ctx, NewDriftPayload(matchID, drift))
}

func (c *WebhookClient) NotifyRunSummary(ctx context.Context, summary collector.Summary) error {
	return c.sendPayload(ctx, NewRunSummaryPayload(summary))
}

func (c *WebhookClient) NotifyKeyRejected(ctx context.Context, apiKey string) error {
	return c.sendPayload(ctx, NewKeyRejectedPayload(apiKey))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrap(err, "request failed")
		}
		resp.Body.Close()

		// Success - Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		// Rate limited - wait and retry
		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				waitDuration = time.Duration(seconds) * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return errors.Newf("webhook request failed with status %d", resp.StatusCode)
	}

	return errors.Newf("webhook request failed after %d retries", maxRetries)
}

// keyList renders keys one per line in a code block, cut to fit a field.
func keyList(keys []string) string {
	if len(keys) == 0 {
		return "none"
	}

	const fence = "```"
	var b strings.Builder
	b.WriteString(fence + "\n")
	for i, k := range keys {
		line := k + "\n"
		more := fmt.Sprintf("... %d more\n", len(keys)-i)
		if b.Len()+len(line)+len(more)+len(fence) > maxFieldValue {
			b.WriteString(more)
			break
		}
		b.WriteString(line)
	}
	b.WriteString(fence)
	return b.String()
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym Zs", dropping leading zero units.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
