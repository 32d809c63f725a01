// Package yahoo provides price, FX and quote data from Yahoo Finance.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public Yahoo Finance query host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) beam/1.0"

// ChartClient reads the v8 chart endpoint
type ChartClient struct {
	client *resty.Client
	log    zerolog.Logger
}

// NewChartClient creates a chart client. An empty baseURL uses DefaultBaseURL.
func NewChartClient(baseURL string, timeout time.Duration, log zerolog.Logger) *ChartClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	return &ChartClient{
		client: client,
		log:    log.With().Str("client", "yahoo-chart").Logger(),
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency           string  `json:"currency"`
		Symbol             string  `json:"symbol"`
		LongName           string  `json:"longName"`
		ShortName          string  `json:"shortName"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
		GMTOffset          int     `json:"gmtoffset"`
		ExchangeTimezone   string  `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
			High  []*float64 `json:"high"`
		} `json:"quote"`
	} `json:"indicators"`
}

// fetch returns the first chart result, or nil when the symbol is unknown.
func (c *ChartClient) fetch(ctx context.Context, symbol string, params map[string]string) (*chartResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("chart request for %s failed: %w", symbol, err)
	}

	var body chartResponse
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr != nil {
		if resp.StatusCode() == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode chart for %s (status %d): %w", symbol, resp.StatusCode(), jsonErr)
	}

	if body.Chart.Error != nil {
		if resp.StatusCode() == http.StatusNotFound || strings.EqualFold(body.Chart.Error.Code, "Not Found") {
			return nil, nil
		}
		return nil, fmt.Errorf("chart error for %s: %s", symbol, body.Chart.Error.Description)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("chart request for %s returned status %d", symbol, resp.StatusCode())
	}
	if len(body.Chart.Result) == 0 {
		return nil, nil
	}
	return &body.Chart.Result[0], nil
}

// FetchSeries implements marketdata.Source.
func (c *ChartClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval domain.Interval) ([]domain.PricePoint, error) {
	params := map[string]string{
		"period1":  strconv.FormatInt(domain.Day(start).Unix(), 10),
		"period2":  strconv.FormatInt(domain.Day(end).AddDate(0, 0, 1).Unix(), 10),
		"interval": string(interval),
		"events":   "history",
	}

	result, err := c.fetch(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		c.log.Debug().Str("symbol", symbol).Msg("Unknown symbol")
		return []domain.PricePoint{}, nil
	}

	return closesFrom(result), nil
}

func closesFrom(result *chartResult) []domain.PricePoint {
	if len(result.Indicators.Quote) == 0 {
		return []domain.PricePoint{}
	}
	closes := result.Indicators.Quote[0].Close
	loc := exchangeLocation(result)
	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		v := *closes[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, domain.PricePoint{Date: domain.Day(time.Unix(ts, 0).In(loc)), Value: v})
	}
	return points
}

// exchangeLocation is the time zone bars are stamped in. Yahoo stamps daily
// bars at the local session open, which falls on the previous UTC day for
// exchanges east of UTC+9.
func exchangeLocation(result *chartResult) *time.Location {
	if name := result.Meta.ExchangeTimezone; name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if result.Meta.GMTOffset != 0 {
		return time.FixedZone("exchange", result.Meta.GMTOffset)
	}
	return time.UTC
}

// FetchQuote implements marketdata.QuoteSource. The 52-week high falls back
// to the highest daily high of the last year when the meta block omits it.
func (c *ChartClient) FetchQuote(ctx context.Context, symbol string) (marketdata.Quote, error) {
	result, err := c.fetch(ctx, symbol, map[string]string{"range": "1y", "interval": "1d"})
	if err != nil {
		return marketdata.Quote{}, err
	}
	if result == nil {
		return marketdata.Quote{}, fmt.Errorf("unknown symbol %s", symbol)
	}

	q := marketdata.Quote{
		Symbol:   symbol,
		Name:     result.Meta.LongName,
		Price:    result.Meta.RegularMarketPrice,
		High52:   result.Meta.FiftyTwoWeekHigh,
		Currency: domain.NormalizeCurrency(result.Meta.Currency),
	}
	if q.Name == "" {
		q.Name = result.Meta.ShortName
	}
	if q.High52 <= 0 && len(result.Indicators.Quote) > 0 {
		for _, h := range result.Indicators.Quote[0].High {
			if h != nil && *h > q.High52 {
				q.High52 = *h
			}
		}
	}
	if q.Price <= 0 {
		if points := closesFrom(result); len(points) > 0 {
			q.Price = points[len(points)-1].Value
		}
	}
	return q, nil
}
