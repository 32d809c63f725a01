package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aristath/beam/internal/database"
	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type staticPortfolio struct {
	holdings []domain.Holding
	currency string
}

func (p staticPortfolio) Holdings() []domain.Holding { return p.holdings }
func (p staticPortfolio) TargetCurrency() string     { return p.currency }

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) handle(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// setupTestHandler creates a handler over an in-memory portfolio database
func setupTestHandler(t *testing.T) *Handler {
	h, _ := setupWithEvents(t, staticPortfolio{
		holdings: []domain.Holding{{Ticker: "AAA", Quantity: 2, AcquisitionPrice: 10, Currency: "USD"}},
		currency: "EUR",
	})
	return h
}

func setupWithEvents(t *testing.T, p Portfolio) (*Handler, *recorder) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("portfolio")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	bus := events.NewBus()
	rec := &recorder{}
	bus.Subscribe(events.SnapshotSaved, rec.handle)
	bus.Subscribe(events.SnapshotDeleted, rec.handle)

	h := NewHandler(snapshots.NewRepository(db, logger), p, events.NewManager(bus, logger), logger)
	h.now = func() time.Time { return time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC) }
	return h, rec
}

func serve(h *Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSnapshotLifecycle(t *testing.T) {
	h, rec := setupWithEvents(t, staticPortfolio{
		holdings: []domain.Holding{{Ticker: "AAA", Quantity: 2, AcquisitionPrice: 10, Currency: "USD", Category: "Tech"}},
		currency: "EUR",
	})

	w := serve(h, http.MethodPost, "/snapshots/", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data SnapshotResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "2024-06-14", created.Data.Date)
	assert.Equal(t, "EUR", created.Data.TargetCurrency)
	assert.Equal(t, 1, created.Data.HoldingCount)

	w = serve(h, http.MethodPost, "/snapshots/", []byte(`{"date":"2024-05-31","currency":"usd"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(h, http.MethodGet, "/snapshots/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data struct {
			Snapshots []SnapshotResponse `json:"snapshots"`
			Count     int                `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 2, list.Data.Count)
	assert.Equal(t, "2024-05-31", list.Data.Snapshots[0].Date)
	assert.Equal(t, "USD", list.Data.Snapshots[0].TargetCurrency)
	assert.Empty(t, list.Data.Snapshots[0].Holdings)

	w = serve(h, http.MethodGet, "/snapshots/2024-06-14", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Quantité":2`)
	assert.Contains(t, w.Body.String(), `"Catégorie":"Tech"`)

	w = serve(h, http.MethodDelete, "/snapshots/2024-06-14", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = serve(h, http.MethodGet, "/snapshots/2024-06-14", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(h, http.MethodDelete, "/snapshots/2024-06-14", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Len(t, rec.events, 3)
	assert.Equal(t, events.SnapshotSaved, rec.events[0].Type)
	assert.Equal(t, "2024-06-14", rec.events[0].Data["date"])
	assert.Equal(t, events.SnapshotDeleted, rec.events[2].Type)
}

func TestHandleSave_Validation(t *testing.T) {
	h := setupTestHandler(t)

	w := serve(h, http.MethodPost, "/snapshots/", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(h, http.MethodPost, "/snapshots/", []byte(`{"date":"14/06/2024"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	empty, _ := setupWithEvents(t, staticPortfolio{currency: "EUR"})
	w = serve(empty, http.MethodPost, "/snapshots/", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleGet_InvalidDate(t *testing.T) {
	h := setupTestHandler(t)
	w := serve(h, http.MethodGet, "/snapshots/yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
