package oddsapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/provider"
)

// ProviderName is the identifier persisted in mappings and bronze paths.
const ProviderName = "oddsapi"

// Client talks to the-odds-api.com v4 through the shared rate-limited
// provider client. It serves both the historical event listing and the
// point-in-time odds endpoint.
type Client struct {
	client *provider.Client
	cfg    config.ProviderConfig
}

var _ provider.OddsSource = (*Client)(nil)

func New(cfg config.ProviderConfig, logger *slog.Logger) *Client {
	return &Client{
		client: provider.NewClient(ProviderName, cfg, logger),
		cfg:    cfg,
	}
}

// NewWithClient injects a pre-built provider client, for tests.
func NewWithClient(cfg config.ProviderConfig, client *provider.Client) *Client {
	return &Client{client: client, cfg: cfg}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("apiKey", c.cfg.APIKey)
	params.Set("regions", c.cfg.Regions)
	params.Set("markets", strings.Join(c.cfg.Markets, ","))
	params.Set("oddsFormat", c.cfg.OddsFormat)
	return params
}

// EventsAt returns the provider's event listing as it existed at the given
// instant.
func (c *Client) EventsAt(ctx context.Context, league string, at time.Time) (*provider.EventsPage, error) {
	endpoint := fmt.Sprintf("/historical/sports/%s/events", league)
	params := c.baseParams()
	params.Del("regions")
	params.Del("markets")
	params.Del("oddsFormat")
	params.Set("date", at.UTC().Format(time.RFC3339))

	fetched, err := c.client.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	envelope, err := parseHistoricalEvents(fetched.Body)
	if err != nil {
		return nil, &provider.Error{
			Class: provider.FailureMalformed, Provider: ProviderName,
			Endpoint: endpoint, Err: err,
		}
	}

	page := &provider.EventsPage{
		Raw:          fetched,
		Endpoint:     endpoint,
		SnapshotTime: envelope.Timestamp,
	}
	for _, ev := range envelope.Data {
		page.Events = append(page.Events, provider.EventRef{
			ProviderEventID: ev.ID,
			HomeTeam:        ev.HomeTeam,
			AwayTeam:        ev.AwayTeam,
			CommenceTime:    ev.CommenceTime,
		})
	}
	return page, nil
}

// EventOddsAt returns the odds for one event as observed at the given
// instant. The provider echoes the actual snapshot timestamp it served,
// which may be earlier than requested; that echoed value is the observation
// time kept downstream.
func (c *Client) EventOddsAt(ctx context.Context, league, providerEventID string, at time.Time) (*provider.OddsDocument, error) {
	endpoint := fmt.Sprintf("/historical/sports/%s/events/%s/odds", league, providerEventID)
	params := c.baseParams()
	params.Set("date", at.UTC().Format(time.RFC3339))

	fetched, err := c.client.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	envelope, err := parseHistoricalOdds(fetched.Body)
	if err != nil {
		return nil, &provider.Error{
			Class: provider.FailureMalformed, Provider: ProviderName,
			Endpoint: endpoint, Err: err,
		}
	}

	ev := envelope.Data
	doc := &provider.OddsDocument{
		Raw:             fetched,
		Endpoint:        endpoint,
		ProviderEventID: ev.ID,
		HomeTeam:        ev.HomeTeam,
		AwayTeam:        ev.AwayTeam,
		CommenceTime:    ev.CommenceTime,
		SnapshotTime:    envelope.Timestamp,
		IsLive:          !envelope.Timestamp.Before(ev.CommenceTime),
		Quotes:          flattenQuotes(ev),
	}
	return doc, nil
}
