package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/beam/internal/modules/importer"
	"github.com/aristath/beam/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouteHandler() *Handler {
	logger := zerolog.Nop()
	svc := portfolio.NewPortfolioService(portfolio.NewStore("EUR"), stubQuotes{}, stubSpot{}, 1, logger)
	return NewHandler(svc, importer.New(logger), importer.NewRemoteFetcher(time.Second), "", nil, nil, logger)
}

func TestRegisterRoutes(t *testing.T) {
	handler := newRouteHandler()

	router := chi.NewRouter()
	require.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")

	testCases := []struct {
		method string
		path   string
		name   string
	}{
		{"GET", "/portfolio/", "GetPortfolio"},
		{"PUT", "/portfolio/currency", "SetCurrency"},
		{"GET", "/portfolio/summary", "GetSummary"},
		{"GET", "/portfolio/allocation", "GetAllocation"},
		{"POST", "/portfolio/import/", "Import"},
		{"POST", "/portfolio/import/remote", "ImportRemote"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.NotEqual(t, http.StatusNotFound, rec.Code, "Route %s %s should be registered", tc.method, tc.path)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestRegisterRoutes_RoutePrefix(t *testing.T) {
	router := chi.NewRouter()
	newRouteHandler().RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "Route without /portfolio prefix should return 404")
}
