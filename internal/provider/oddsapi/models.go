package oddsapi

import "time"

// Raw payload shapes for the-odds-api.com v4. These are the provider's wire
// types; nothing outside this package touches them.

type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// historicalEventsEnvelope wraps the /historical/sports/{sport}/events
// response: the listing as it existed at Timestamp.
type historicalEventsEnvelope struct {
	Timestamp         time.Time  `json:"timestamp"`
	PreviousTimestamp *time.Time `json:"previous_timestamp"`
	NextTimestamp     *time.Time `json:"next_timestamp"`
	Data              []Event    `json:"data"`
}

// historicalOddsEnvelope wraps /historical/sports/{sport}/events/{id}/odds.
type historicalOddsEnvelope struct {
	Timestamp         time.Time  `json:"timestamp"`
	PreviousTimestamp *time.Time `json:"previous_timestamp"`
	NextTimestamp     *time.Time `json:"next_timestamp"`
	Data              Event      `json:"data"`
}
