package balldontlie

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/provider"
)

// ProviderName is the identifier persisted in mappings and bronze paths.
const ProviderName = "balldontlie"

const gamesEndpoint = "/v1/games"

// Client is the balldontlie.io schedule source. Auth is a plain API key in
// the Authorization header, configured via the provider's headers section.
type Client struct {
	client *provider.Client
	cfg    config.ProviderConfig
}

var _ provider.ScheduleSource = (*Client)(nil)

func New(cfg config.ProviderConfig, logger *slog.Logger) *Client {
	if cfg.APIKey != "" {
		// Copy before adding the key: the headers map is shared with the
		// caller's config and must not pick up credentials.
		headers := make(map[string]string, len(cfg.Headers)+1)
		for k, v := range cfg.Headers {
			headers[k] = v
		}
		headers["Authorization"] = cfg.APIKey
		cfg.Headers = headers
	}
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

// GamesForDate pulls every page of the games listing for one date. Each
// upstream page becomes its own SchedulePage so the caller can capture and
// checkpoint pages independently.
func (c *Client) GamesForDate(ctx context.Context, league string, date time.Time) ([]*provider.SchedulePage, error) {
	var pages []*provider.SchedulePage
	var cursor *int

	for {
		params := url.Values{}
		params.Set("dates[]", date.UTC().Format("2006-01-02"))
		params.Set("per_page", "100")
		if cursor != nil {
			params.Set("cursor", strconv.Itoa(*cursor))
		}

		fetched, err := c.client.Fetch(ctx, gamesEndpoint, params)
		if err != nil {
			return pages, err
		}

		envelope, err := parseGames(fetched.Body)
		if err != nil {
			return pages, &provider.Error{
				Class: provider.FailureMalformed, Provider: ProviderName,
				Endpoint: gamesEndpoint, Err: err,
			}
		}

		pages = append(pages, &provider.SchedulePage{
			Raw:      fetched,
			Endpoint: gamesEndpoint,
			Games:    toScheduleGames(league, envelope.Data),
		})

		if envelope.Meta.NextCursor == nil {
			return pages, nil
		}
		cursor = envelope.Meta.NextCursor
	}
}
