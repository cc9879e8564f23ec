package balldontlie

import (
	"testing"
	"time"
)

const gamesPayload = `{
  "data": [
    {
      "id": 1038184,
      "date": "2024-03-01",
      "datetime": "2024-03-02T00:30:00Z",
      "season": 2023,
      "status": "Final",
      "period": 4,
      "home_team": {"id": 14, "full_name": "Los Angeles Lakers", "abbreviation": "LAL"},
      "visitor_team": {"id": 2, "full_name": "Boston Celtics", "abbreviation": "BOS"},
      "home_team_score": 114,
      "visitor_team_score": 105
    },
    {
      "id": 1038185,
      "date": "2024-03-01",
      "datetime": "",
      "season": 2023,
      "status": "2024-03-02T02:00:00Z",
      "period": 0,
      "home_team": {"id": 8, "full_name": "Denver Nuggets"},
      "visitor_team": {"id": 24, "full_name": "Phoenix Suns"},
      "home_team_score": 0,
      "visitor_team_score": 0
    }
  ],
  "meta": {"next_cursor": 1038185, "per_page": 100}
}`

func TestParseGames(t *testing.T) {
	envelope, err := parseGames([]byte(gamesPayload))
	if err != nil {
		t.Fatalf("parseGames failed: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("parsed %d games, want 2", len(envelope.Data))
	}
	if envelope.Meta.NextCursor == nil || *envelope.Meta.NextCursor != 1038185 {
		t.Errorf("next cursor = %v, want 1038185", envelope.Meta.NextCursor)
	}

	games := toScheduleGames("basketball_nba", envelope.Data)

	finished := games[0]
	if finished.ProviderGameID != "1038184" {
		t.Errorf("provider game id = %q", finished.ProviderGameID)
	}
	if finished.Provider != ProviderName {
		t.Errorf("provider = %q, want %q", finished.Provider, ProviderName)
	}
	wantTip := time.Date(2024, 3, 2, 0, 30, 0, 0, time.UTC)
	if !finished.CommenceTime.Equal(wantTip) {
		t.Errorf("commence time = %v, want %v from datetime field", finished.CommenceTime, wantTip)
	}
	if finished.HomeScore == nil || *finished.HomeScore != 114 {
		t.Errorf("home score = %v, want 114", finished.HomeScore)
	}
	if finished.AwayScore == nil || *finished.AwayScore != 105 {
		t.Errorf("away score = %v, want 105", finished.AwayScore)
	}

	scheduled := games[1]
	wantTip = time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	if !scheduled.CommenceTime.Equal(wantTip) {
		t.Errorf("commence time = %v, want %v from status field", scheduled.CommenceTime, wantTip)
	}
	if scheduled.HomeScore != nil || scheduled.AwayScore != nil {
		t.Errorf("unfinished game must not carry scores")
	}
}

func TestCommenceTimeDateOnlyFallback(t *testing.T) {
	g := Game{Date: "2024-03-01", Status: "1st Qtr"}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := commenceTime(g); !got.Equal(want) {
		t.Errorf("commenceTime = %v, want date-only fallback %v", got, want)
	}
}

func TestParseGamesRejectsGarbage(t *testing.T) {
	if _, err := parseGames([]byte("<html>maintenance</html>")); err == nil {
		t.Errorf("expected an error for non-JSON payload")
	}
}
