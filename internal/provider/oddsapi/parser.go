package oddsapi

import (
	"encoding/json"
	"fmt"

	"github.com/linelogic/linelogic/internal/provider"
)

func parseHistoricalEvents(body []byte) (*historicalEventsEnvelope, error) {
	var envelope historicalEventsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse historical events payload: %w", err)
	}
	if envelope.Timestamp.IsZero() {
		return nil, fmt.Errorf("historical events payload missing snapshot timestamp")
	}
	return &envelope, nil
}

func parseHistoricalOdds(body []byte) (*historicalOddsEnvelope, error) {
	var envelope historicalOddsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse historical odds payload: %w", err)
	}
	if envelope.Timestamp.IsZero() {
		return nil, fmt.Errorf("historical odds payload missing snapshot timestamp")
	}
	if envelope.Data.ID == "" {
		return nil, fmt.Errorf("historical odds payload missing event id")
	}
	return &envelope, nil
}

// flattenQuotes turns the nested bookmaker → market → outcome shape into flat
// quote observations. Selection names follow the provider convention: the
// outcome name is the team (h2h) or Over/Under (totals).
func flattenQuotes(ev Event) []provider.Quote {
	var quotes []provider.Quote
	for _, bk := range ev.Bookmakers {
		for _, mk := range bk.Markets {
			for _, out := range mk.Outcomes {
				quotes = append(quotes, provider.Quote{
					Bookmaker: bk.Key,
					Market:    mk.Key,
					Selection: selectionName(ev, mk.Key, out.Name),
					Price:     out.Price,
					Point:     out.Point,
				})
			}
		}
	}
	return quotes
}

// selectionName maps team-named h2h outcomes to stable home/away/draw labels
// so the same selection hashes identically across providers.
func selectionName(ev Event, market, outcome string) string {
	if market != "h2h" && market != "spreads" {
		return outcome
	}
	switch outcome {
	case ev.HomeTeam:
		return "home"
	case ev.AwayTeam:
		return "away"
	case "Draw":
		return "draw"
	}
	return outcome
}
