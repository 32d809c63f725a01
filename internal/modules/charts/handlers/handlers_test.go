package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/beam/internal/modules/charts"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCharts struct {
	mock.Mock
}

func (m *mockCharts) ValueChart(ctx context.Context, period, currency string, now time.Time) ([]byte, error) {
	args := m.Called(period, currency)
	img, _ := args.Get(0).([]byte)
	return img, args.Error(1)
}

func (m *mockCharts) IndicatorChart(ctx context.Context, kind, period, currency string, now time.Time) ([]byte, error) {
	args := m.Called(kind, period, currency)
	img, _ := args.Get(0).([]byte)
	return img, args.Error(1)
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleValueChart(t *testing.T) {
	svc := &mockCharts{}
	svc.On("ValueChart", "5Y", "USD").Return([]byte("\x89PNG-data"), nil)

	rec := serve(NewHandler(svc, zerolog.Nop()), "/charts/value.png?period=5Y&currency=USD")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG-data", rec.Body.String())
	svc.AssertExpectations(t)
}

func TestHandleIndicatorChart(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		kind   string
		err    error
		status int
	}{
		{"default kind", "/charts/indicators.png", charts.KindZScore, nil, http.StatusOK},
		{"rsi", "/charts/indicators.png?kind=rsi", charts.KindRSI, nil, http.StatusOK},
		{"unknown kind", "/charts/indicators.png?kind=candles", "candles", fmt.Errorf("%w: candles", charts.ErrUnknownKind), http.StatusBadRequest},
		{"no data", "/charts/indicators.png?kind=macd", charts.KindMACD, charts.ErrNoData, http.StatusNotFound},
		{"source failure", "/charts/indicators.png?kind=volatility", charts.KindVolatility, errors.New("down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCharts{}
			var img []byte
			if tt.err == nil {
				img = []byte("png")
			}
			svc.On("IndicatorChart", tt.kind, "", "").Return(img, tt.err)

			rec := serve(NewHandler(svc, zerolog.Nop()), tt.path)
			assert.Equal(t, tt.status, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
