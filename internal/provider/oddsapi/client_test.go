package oddsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/provider"
)

func testClientAgainst(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.ProviderConfig{
		BaseURL:          server.URL,
		APIKey:           "test-key",
		Timeout:          2 * time.Second,
		RatePerMinute:    6000,
		Burst:            100,
		MaxAttempts:      2,
		BackoffInitial:   time.Millisecond,
		BackoffMax:       time.Millisecond,
		BreakerThreshold: 10,
		BreakerCooldown:  time.Minute,
		Markets:          []string{"h2h"},
		Regions:          "us",
		OddsFormat:       "decimal",
	}
	return NewWithClient(cfg, provider.NewClient(ProviderName, cfg, nil))
}

func TestEventsAt(t *testing.T) {
	var gotQuery map[string]string
	c := testClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/historical/sports/basketball_nba/events" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotQuery = map[string]string{
			"apiKey": r.URL.Query().Get("apiKey"),
			"date":   r.URL.Query().Get("date"),
		}
		w.Write([]byte(`{
		  "timestamp": "2024-03-01T13:30:00Z",
		  "data": [{"id": "ev1", "commence_time": "2024-03-02T00:30:00Z",
		            "home_team": "Los Angeles Lakers", "away_team": "Boston Celtics"}]
		}`))
	}))

	at := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)
	page, err := c.EventsAt(context.Background(), "basketball_nba", at)
	if err != nil {
		t.Fatalf("EventsAt failed: %v", err)
	}
	if gotQuery["apiKey"] != "test-key" {
		t.Errorf("apiKey param = %q", gotQuery["apiKey"])
	}
	if gotQuery["date"] != "2024-03-01T13:30:00Z" {
		t.Errorf("date param = %q", gotQuery["date"])
	}
	if len(page.Events) != 1 || page.Events[0].ProviderEventID != "ev1" {
		t.Fatalf("unexpected events: %+v", page.Events)
	}
	if !page.SnapshotTime.Equal(at) {
		t.Errorf("snapshot time = %v, want the echoed timestamp", page.SnapshotTime)
	}
	if page.Raw == nil || len(page.Raw.Body) == 0 {
		t.Errorf("raw payload not kept for bronze capture")
	}
}

func TestEventOddsAtEchoedSnapshotTime(t *testing.T) {
	c := testClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The provider serves the nearest earlier snapshot, not the
		// requested instant.
		w.Write([]byte(`{
		  "timestamp": "2024-03-01T13:25:00Z",
		  "data": {"id": "ev1", "commence_time": "2024-03-02T00:30:00Z",
		           "home_team": "Los Angeles Lakers", "away_team": "Boston Celtics",
		           "bookmakers": [{"key": "draftkings", "markets": [
		             {"key": "h2h", "outcomes": [
		               {"name": "Los Angeles Lakers", "price": 2.30},
		               {"name": "Boston Celtics", "price": 1.65}]}]}]}
		}`))
	}))

	requested := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)
	doc, err := c.EventOddsAt(context.Background(), "basketball_nba", "ev1", requested)
	if err != nil {
		t.Fatalf("EventOddsAt failed: %v", err)
	}
	served := time.Date(2024, 3, 1, 13, 25, 0, 0, time.UTC)
	if !doc.SnapshotTime.Equal(served) {
		t.Errorf("snapshot time = %v, want the provider's echoed %v", doc.SnapshotTime, served)
	}
	if doc.IsLive {
		t.Errorf("pre-game snapshot marked live")
	}
	if len(doc.Quotes) != 2 {
		t.Errorf("flattened %d quotes, want 2", len(doc.Quotes))
	}
}

func TestEventOddsAtMalformedPayload(t *testing.T) {
	c := testClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))

	_, err := c.EventOddsAt(context.Background(), "basketball_nba", "ev1", time.Now())
	if provider.ClassOf(err) != provider.FailureMalformed {
		t.Errorf("error class = %q, want %q", provider.ClassOf(err), provider.FailureMalformed)
	}
	if provider.IsTransient(err) {
		t.Errorf("malformed payload must not be retryable")
	}
}
