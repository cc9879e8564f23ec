package models

import "time"

// ScheduleGame is one game from a schedule provider, still keyed by the
// provider's own identifiers and team names. Canonical resolution happens
// later at the normalization boundary.
type ScheduleGame struct {
	Provider       string    `json:"provider"`
	ProviderGameID string    `json:"provider_game_id"`
	League         string    `json:"league"`
	HomeTeam       string    `json:"home_team"`
	AwayTeam       string    `json:"away_team"`
	CommenceTime   time.Time `json:"commence_time_utc"`
	Status         string    `json:"status"`
	HomeScore      *int      `json:"home_score,omitempty"`
	AwayScore      *int      `json:"away_score,omitempty"`
}

// ValidateScheduleGames runs structural sanity checks on parsed schedule rows
// and returns human-readable problems for the run summary. Bad rows are
// reported, never silently dropped.
func ValidateScheduleGames(games []ScheduleGame) []string {
	var problems []string
	for _, g := range games {
		if g.ProviderGameID == "" {
			problems = append(problems, "schedule row missing provider game id")
		}
		if g.HomeTeam == "" || g.AwayTeam == "" {
			problems = append(problems, "game "+g.ProviderGameID+" missing team name")
		}
		if g.CommenceTime.IsZero() {
			problems = append(problems, "game "+g.ProviderGameID+" missing commence time")
		}
	}
	return problems
}
