// Package exchangerate fetches latest exchange rates from exchangerate-api.com.
// It backs spot conversions when Yahoo has no quote for a currency pair.
package exchangerate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/aristath/beam/internal/clientdata"
	"github.com/aristath/beam/internal/domain"
)

// DefaultBaseURL serves the latest rates for a base currency
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Client for exchangerate-api.com
type Client struct {
	client    *resty.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo is optional; without it nothing is cached.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json"),
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// cachedRate is the structure stored in the cache
type cachedRate struct {
	Rate float64 `msgpack:"r"`
}

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// LatestRate returns how many units of to one unit of from buys.
// When the API fails, an expired cached rate is returned if one exists.
func (c *Client) LatestRate(ctx context.Context, from, to string) (float64, error) {
	from, to = domain.NormalizeCurrency(from), domain.NormalizeCurrency(to)
	if from == to {
		return 1.0, nil
	}

	cacheKey := from + ":" + to

	if c.cacheRepo != nil {
		var cached cachedRate
		if ok, err := c.cacheRepo.GetIfFresh(clientdata.TableSpotRates, cacheKey, &cached); err == nil && ok {
			c.log.Debug().Str("pair", cacheKey).Float64("rate", cached.Rate).Msg("Cache hit")
			return cached.Rate, nil
		}
	}

	rate, err := c.fetch(ctx, from, to)
	if err != nil {
		if stale, ok := c.stale(cacheKey); ok {
			c.log.Warn().Err(err).Str("pair", cacheKey).Float64("rate", stale).Msg("API failed, using stale cached rate")
			return stale, nil
		}
		return 0, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableSpotRates, cacheKey, cachedRate{Rate: rate}, clientdata.TTLSpotRate); err != nil {
			c.log.Warn().Err(err).Str("pair", cacheKey).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().Str("from", from).Str("to", to).Float64("rate", rate).Msg("Fetched rate")
	return rate, nil
}

func (c *Client) fetch(ctx context.Context, from, to string) (float64, error) {
	var result latestResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("base", from).
		SetResult(&result).
		Get("/{base}")
	if err != nil {
		return 0, fmt.Errorf("API request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("API returned status %d", resp.StatusCode())
	}

	rate, ok := result.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("rate not found for %s->%s", from, to)
	}
	return rate, nil
}

// stale retrieves a cached rate even if expired
func (c *Client) stale(cacheKey string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}
	var cached cachedRate
	ok, err := c.cacheRepo.Get(clientdata.TableSpotRates, cacheKey, &cached)
	if err != nil || !ok {
		return 0, false
	}
	return cached.Rate, true
}
