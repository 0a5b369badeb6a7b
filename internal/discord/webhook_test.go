package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"team-ingest/internal/collector"
	"team-ingest/internal/db"
	"team-ingest/internal/schema"
)

// TestDriftPayload_Format tests the drift embed lists added and removed keys
func TestDriftPayload_Format(t *testing.T) {
	payload := NewDriftPayload("NA1_42", schema.Drift{
		Added:   []string{"info.gameMode"},
		Removed: []string{"challenges.kda", "info.gameVersion"},
	})

	if len(payload.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]

	if embed.Color != colorYellow {
		t.Errorf("Expected yellow color, got: %d", embed.Color)
	}
	if !strings.Contains(embed.Description, "NA1_42") {
		t.Errorf("Expected description to name the match, got: %s", embed.Description)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(embed.Fields))
	}
	if embed.Fields[0].Name != "Added (1)" || !strings.Contains(embed.Fields[0].Value, "info.gameMode") {
		t.Errorf("Unexpected added field: %+v", embed.Fields[0])
	}
	if embed.Fields[1].Name != "Removed (2)" || !strings.Contains(embed.Fields[1].Value, "challenges.kda\ninfo.gameVersion") {
		t.Errorf("Unexpected removed field: %+v", embed.Fields[1])
	}
}

// TestKeyList_Truncates tests that long key lists fit in one embed field
func TestKeyList_Truncates(t *testing.T) {
	var keys []string
	for i := 0; i < 200; i++ {
		keys = append(keys, "participant.someVeryLongChallengeName"+strings.Repeat("x", i%7))
	}

	value := keyList(keys)
	if len(value) > maxFieldValue {
		t.Errorf("Expected at most %d chars, got %d", maxFieldValue, len(value))
	}
	if !strings.Contains(value, "more") {
		t.Error("Expected a truncation marker")
	}
	if keyList(nil) != "none" {
		t.Errorf("Expected 'none' for empty list, got %q", keyList(nil))
	}
}

// TestRunSummaryPayload_Format tests the summary embed fields
func TestRunSummaryPayload_Format(t *testing.T) {
	payload := NewRunSummaryPayload(collector.Summary{
		RosterSize: 5,
		Resolved:   4,
		Shared:     1234,
		Stored:     1233,
		Skipped:    1,
		Counts:     db.Counts{Matches: 47832, Participants: 191328, Teams: 95664},
		Duration:   26*time.Minute + 5*time.Second,
	})

	embed := payload.Embeds[0]
	if embed.Color != colorYellow {
		t.Errorf("Expected yellow color when matches were skipped, got: %d", embed.Color)
	}

	want := map[string]string{
		"Players":        "4 of 5 resolved",
		"Shared Matches": "1,234",
		"Stored":         "1,233",
		"Runtime":        "26m 5s",
		"Totals":         "47,832 matches, 191,328 participants, 95,664 teams",
	}
	for _, f := range embed.Fields {
		if v, ok := want[f.Name]; ok && v != f.Value {
			t.Errorf("Field %s: expected %q, got %q", f.Name, v, f.Value)
		}
	}

	clean := NewRunSummaryPayload(collector.Summary{Stored: 3})
	if clean.Embeds[0].Color != colorGreen {
		t.Errorf("Expected green color for a clean run, got: %d", clean.Embeds[0].Color)
	}
}

// TestKeyRejectedPayload_Format tests the key is masked
func TestKeyRejectedPayload_Format(t *testing.T) {
	payload := NewKeyRejectedPayload("RGAPI-12345678-abcd-efgh")

	if !strings.Contains(payload.Content, "@here") {
		t.Error("Expected @here mention in content")
	}
	embed := payload.Embeds[0]
	if embed.Color != colorRed {
		t.Errorf("Expected red color, got: %d", embed.Color)
	}
	if strings.Contains(embed.Fields[0].Value, "12345678") {
		t.Errorf("Key should be masked, got: %s", embed.Fields[0].Value)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 47832: "47,832", 1234567: "1,234,567"}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		42 * time.Second:              "42s",
		3*time.Minute + 2*time.Second: "3m 2s",
		18*time.Hour + 32*time.Minute: "18h 32m",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

// TestWebhookClient_NotifyDrift tests the request sent to Discord
func TestWebhookClient_NotifyDrift(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("Invalid JSON body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	err := client.NotifyDrift(context.Background(), "NA1_1", schema.Drift{Added: []string{"info.newKey"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(received.Embeds) != 1 || !strings.Contains(received.Embeds[0].Fields[0].Value, "info.newKey") {
		t.Errorf("Unexpected payload: %+v", received)
	}
}

// TestWebhookClient_WebhookError tests handling of webhook errors
func TestWebhookClient_WebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	err := client.NotifyRunSummary(context.Background(), collector.Summary{})
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("Expected status in error, got: %v", err)
	}
}

// TestWebhookClient_NetworkError tests handling of network errors
func TestWebhookClient_NetworkError(t *testing.T) {
	client := NewWebhookClient("http://127.0.0.1:1/webhook")
	if err := client.NotifyKeyRejected(context.Background(), "RGAPI-test"); err == nil {
		t.Error("Expected error for unreachable webhook")
	}
}

// TestWebhookClient_RateLimited tests handling of Discord rate limiting
func TestWebhookClient_RateLimited(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	err := client.NotifyRunSummary(context.Background(), collector.Summary{Stored: 1})

	if err != nil {
		t.Errorf("Expected success after retry, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts (1 retry), got: %d", attempts)
	}
}

// TestWebhookClient_ContextCancelled tests that a cancelled context stops the rate-limit wait
func TestWebhookClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewWebhookClient(server.URL)
	start := time.Now()
	if err := client.NotifyRunSummary(ctx, collector.Summary{}); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected the wait to stop when the context ends")
	}
}
