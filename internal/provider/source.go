package provider

import (
	"context"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// EventRef is one upstream event as listed by an odds provider, still in the
// provider's own identifier space.
type EventRef struct {
	ProviderEventID string
	HomeTeam        string
	AwayTeam        string
	CommenceTime    time.Time
}

// Quote is a single (bookmaker, market, selection, price) observation inside
// an odds document.
type Quote struct {
	Bookmaker string
	Market    string
	Selection string
	Price     float64
	Point     *float64
}

// EventsPage is a provider's event listing for one date, with the raw
// response kept for the bronze tier.
type EventsPage struct {
	Raw          *Fetched
	Endpoint     string
	SnapshotTime time.Time
	Events       []EventRef
}

// OddsDocument is one point-in-time odds response for a single event.
// SnapshotTime is the provider's reported observation time, not the request
// time; it is the semantic key dimension downstream and is never merged.
type OddsDocument struct {
	Raw             *Fetched
	Endpoint        string
	ProviderEventID string
	HomeTeam        string
	AwayTeam        string
	CommenceTime    time.Time
	SnapshotTime    time.Time
	IsLive          bool
	Quotes          []Quote
}

// SchedulePage is one schedule pull, with the raw response kept for bronze.
type SchedulePage struct {
	Raw      *Fetched
	Endpoint string
	Games    []models.ScheduleGame
}

// OddsSource is an upstream odds provider able to answer historical
// point-in-time queries.
type OddsSource interface {
	Name() string
	EventsAt(ctx context.Context, league string, at time.Time) (*EventsPage, error)
	EventOddsAt(ctx context.Context, league, providerEventID string, at time.Time) (*OddsDocument, error)
}

// ScheduleSource lists the games for a date. Paginated providers return one
// SchedulePage per upstream page so each page can be captured and
// checkpointed as its own unit of work.
type ScheduleSource interface {
	Name() string
	GamesForDate(ctx context.Context, league string, date time.Time) ([]*SchedulePage, error)
}
