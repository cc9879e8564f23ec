package balldontlie

// Raw payload shapes for balldontlie.io v1. The games listing is the
// schedule source of record for daily runs.

type gamesEnvelope struct {
	Data []Game `json:"data"`
	Meta Meta   `json:"meta"`
}

type Meta struct {
	NextCursor *int `json:"next_cursor"`
	PerPage    int  `json:"per_page"`
}

type Game struct {
	ID       int    `json:"id"`
	Date     string `json:"date"`     // YYYY-MM-DD
	Datetime string `json:"datetime"` // RFC3339 tip-off when provided
	Season   int    `json:"season"`
	// Status is either a phase ("Final", "1st Qtr") or, for scheduled games,
	// the RFC3339 tip-off time.
	Status           string `json:"status"`
	Period           int    `json:"period"`
	HomeTeam         Team   `json:"home_team"`
	VisitorTeam      Team   `json:"visitor_team"`
	HomeTeamScore    int    `json:"home_team_score"`
	VisitorTeamScore int    `json:"visitor_team_score"`
}

type Team struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	City         string `json:"city"`
	Name         string `json:"name"`
	FullName     string `json:"full_name"`
}
