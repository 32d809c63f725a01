package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/beam/internal/modules/momentum"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, tickers []string, strategy momentum.Strategy) ([]momentum.Result, error) {
	args := m.Called(ctx, tickers, strategy)
	if v := args.Get(0); v != nil {
		return v.([]momentum.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

type staticTickers []string

func (s staticTickers) Tickers() []string { return s }

func newTestRouter(a Analyzer, tl TickerLister) *chi.Mux {
	handler := NewHandler(a, tl, zerolog.New(nil).Level(zerolog.Disabled))
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func TestHandleGetMomentum(t *testing.T) {
	a := new(mockAnalyzer)
	a.On("Analyze", mock.Anything, []string{"AAA", "BBB"}, momentum.CoarseStrategy{}).Return([]momentum.Result{
		{Ticker: "AAA", Status: momentum.StatusOK, LastPrice: 12.5, MomentumPct: 4.2, Z: 1.8, Signal: "Haussier", Action: "Acheter"},
		{Ticker: "BBB", Status: momentum.StatusInsufficientData, LastPrice: math.NaN(), MomentumPct: math.NaN(), Z: math.NaN()},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/momentum/?tickers=aaa,%20BBB&strategy=coarse", nil)
	w := httptest.NewRecorder()
	newTestRouter(a, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Strategy string `json:"strategy"`
			Results  []Row  `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "coarse", body.Data.Strategy)
	require.Len(t, body.Data.Results, 2)
	require.NotNil(t, body.Data.Results[0].Z)
	assert.Equal(t, 1.8, *body.Data.Results[0].Z)
	assert.Equal(t, "4,20 %", body.Data.Results[0].MomentumFmt)
	assert.Equal(t, "insufficient_data", body.Data.Results[1].Status)
	assert.Nil(t, body.Data.Results[1].Z)
	assert.Equal(t, "N/A", body.Data.Results[1].MomentumFmt)
	a.AssertExpectations(t)
}

func TestHandleGetMomentum_DefaultsToPortfolioTickers(t *testing.T) {
	a := new(mockAnalyzer)
	a.On("Analyze", mock.Anything, []string{"CCC"}, momentum.FineStrategy{}).Return([]momentum.Result{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/momentum/", nil)
	w := httptest.NewRecorder()
	newTestRouter(a, staticTickers{"CCC"}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	a.AssertExpectations(t)
}

func TestHandleGetMomentum_UnknownStrategy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/momentum/?strategy=yolo", nil)
	w := httptest.NewRecorder()
	newTestRouter(new(mockAnalyzer), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetMomentum_AnalyzerError(t *testing.T) {
	a := new(mockAnalyzer)
	a.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.Canceled)

	req := httptest.NewRequest(http.MethodGet, "/momentum/?tickers=AAA", nil)
	w := httptest.NewRecorder()
	newTestRouter(a, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
