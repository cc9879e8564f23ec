package balldontlie

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

func parseGames(body []byte) (*gamesEnvelope, error) {
	var envelope gamesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse games payload: %w", err)
	}
	return &envelope, nil
}

func toScheduleGames(league string, games []Game) []models.ScheduleGame {
	out := make([]models.ScheduleGame, 0, len(games))
	for _, g := range games {
		sg := models.ScheduleGame{
			Provider:       ProviderName,
			ProviderGameID: strconv.Itoa(g.ID),
			League:         league,
			HomeTeam:       g.HomeTeam.FullName,
			AwayTeam:       g.VisitorTeam.FullName,
			CommenceTime:   commenceTime(g),
			Status:         g.Status,
		}
		if gameFinished(g) {
			home, away := g.HomeTeamScore, g.VisitorTeamScore
			sg.HomeScore = &home
			sg.AwayScore = &away
		}
		out = append(out, sg)
	}
	return out
}

// commenceTime prefers the explicit datetime field; for scheduled games the
// status field carries the tip-off time instead.
func commenceTime(g Game) time.Time {
	if g.Datetime != "" {
		if t, err := time.Parse(time.RFC3339, g.Datetime); err == nil {
			return t.UTC()
		}
	}
	if t, err := time.Parse(time.RFC3339, g.Status); err == nil {
		return t.UTC()
	}
	// Date-only fallback keeps the row usable for day-level planning.
	if t, err := time.Parse("2006-01-02", g.Date); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func gameFinished(g Game) bool {
	return g.Status == "Final"
}
