package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "AAPL", "longName": "Apple Inc.",
               "regularMarketPrice": 191.5, "fiftyTwoWeekHigh": 199.6},
      "timestamp": [1704205800, 1704292200, 1704378600],
      "indicators": {"quote": [{"close": [185.6, null, 181.9], "high": [188.4, 186.0, 183.1]}]}
    }],
    "error": null
  }
}`

const notFoundFixture = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *ChartClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewChartClient(srv.URL, 5*time.Second, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestChartClient_FetchSeries(t *testing.T) {
	var gotPath, gotInterval string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	})

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	points, err := client.FetchSeries(context.Background(), "AAPL", start, end, domain.IntervalDaily)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1d", gotInterval)
	require.Len(t, points, 2, "null closes are skipped")
	assert.Equal(t, "2024-01-02", domain.DateKey(points[0].Date))
	assert.Equal(t, 185.6, points[0].Value)
	assert.Equal(t, 181.9, points[1].Value)
}

func TestChartClient_FetchSeries_DatesInExchangeTime(t *testing.T) {
	// Sessions opening 10:00 in Sydney (UTC+11) on 3 and 4 January 2024
	const bars = `"timestamp": [1704236400, 1704322800],
      "indicators": {"quote": [{"close": [7.1, 7.2]}]}`

	tests := []struct {
		name string
		meta string
	}{
		{"timezone name", `"exchangeTimezoneName": "Australia/Sydney", "gmtoffset": 39600`},
		{"offset only", `"exchangeTimezoneName": "Nowhere/Unknown", "gmtoffset": 39600`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := `{"chart": {"result": [{"meta": {"currency": "AUD", "symbol": "BHP.AX", ` + tt.meta + `},
      ` + bars + `}], "error": null}}`
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(fixture))
			})

			points, err := client.FetchSeries(context.Background(), "BHP.AX",
				time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), domain.IntervalDaily)
			require.NoError(t, err)
			require.Len(t, points, 2)
			assert.Equal(t, "2024-01-03", domain.DateKey(points[0].Date))
			assert.Equal(t, "2024-01-04", domain.DateKey(points[1].Date))
			assert.Equal(t, time.UTC, points[0].Date.Location())
		})
	}
}

func TestChartClient_FXSymbolIsEscaped(t *testing.T) {
	var gotPath string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(chartFixture))
	})

	_, err := client.FetchSeries(context.Background(), "USDEUR=X", time.Now().AddDate(0, 0, -5), time.Now(), domain.IntervalDaily)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(gotPath, "USDEUR=X"))
}

func TestChartClient_UnknownSymbolIsEmpty(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFoundFixture))
	})

	points, err := client.FetchSeries(context.Background(), "NOPE", time.Now().AddDate(0, 0, -5), time.Now(), domain.IntervalDaily)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestChartClient_UndecodableResponseIsError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`garbage`))
	})

	_, err := client.FetchSeries(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now(), domain.IntervalDaily)
	assert.Error(t, err)
}

func TestChartClient_FetchQuote(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(chartFixture))
	})

	q, err := client.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", q.Name)
	assert.Equal(t, 191.5, q.Price)
	assert.Equal(t, 199.6, q.High52)
	assert.Equal(t, "USD", q.Currency)
}

func TestChartClient_FetchQuote_HighFallback(t *testing.T) {
	fixture := strings.Replace(chartFixture, `"fiftyTwoWeekHigh": 199.6`, `"fiftyTwoWeekHigh": 0`, 1)
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixture))
	})

	q, err := client.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 188.4, q.High52)
}

func TestChartClient_FetchQuote_Unknown(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFoundFixture))
	})

	_, err := client.FetchQuote(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestPeriodFor(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		start time.Time
		want  string
	}{
		{now.AddDate(0, 0, -3), "5d"},
		{now.AddDate(0, 0, -30), "1mo"},
		{now.AddDate(0, 0, -90), "3mo"},
		{now.AddDate(0, 0, -180), "6mo"},
		{now.AddDate(0, 0, -365), "1y"},
		{now.AddDate(-2, 0, 0), "2y"},
		{now.AddDate(-5, 0, 0), "5y"},
		{now.AddDate(-10, 0, 0), "10y"},
		{now.AddDate(-20, 0, 0), "max"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, periodFor(tt.start, now))
		})
	}
}
