package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHoldings struct {
	holdings []domain.Holding
	currency string
}

func (f fakeHoldings) Holdings() []domain.Holding { return f.holdings }
func (f fakeHoldings) TargetCurrency() string      { return f.currency }

type fakeSnapshots struct {
	snaps []domain.PortfolioSnapshot
	err   error
}

func (f fakeSnapshots) List() ([]domain.PortfolioSnapshot, error) { return f.snaps, f.err }

type fakeStore struct {
	saved     []domain.DailyTotal
	savedKeys []string
	stored    []domain.DailyTotal
	storedKey string
}

func (f *fakeStore) Upsert(composition string, totals []domain.DailyTotal) error {
	f.saved = append(f.saved, totals...)
	f.savedKeys = append(f.savedKeys, composition)
	return nil
}

func (f *fakeStore) RangeFor(composition string, start, end time.Time) ([]domain.DailyTotal, error) {
	if composition != f.storedKey {
		return []domain.DailyTotal{}, nil
	}
	return f.stored, nil
}

// dateStore keeps one row per date like portfolio_daily_totals
type dateStore struct {
	rows map[time.Time]storedTotal
}

type storedTotal struct {
	composition string
	total       domain.DailyTotal
}

func (d *dateStore) Upsert(composition string, totals []domain.DailyTotal) error {
	if d.rows == nil {
		d.rows = make(map[time.Time]storedTotal)
	}
	for _, t := range totals {
		d.rows[t.Date] = storedTotal{composition: composition, total: t}
	}
	return nil
}

func (d *dateStore) RangeFor(composition string, start, end time.Time) ([]domain.DailyTotal, error) {
	out := []domain.DailyTotal{}
	for _, day := range marketdata.BusinessDays(start, end) {
		if row, ok := d.rows[day]; ok && row.composition == composition {
			out = append(out, row.total)
		}
	}
	return out, nil
}

// mutableHoldings lets a test swap the composition between calls
type mutableHoldings struct {
	holdings []domain.Holding
}

func (m *mutableHoldings) Holdings() []domain.Holding { return m.holdings }
func (m *mutableHoldings) TargetCurrency() string      { return "EUR" }

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeCurrent, m)

	m, err = ParseMode(" Journal ")
	require.NoError(t, err)
	assert.Equal(t, ModeJournal, m)

	_, err = ParseMode("other")
	assert.Error(t, err)
}

func TestHistory_RunPersistsAndEmits(t *testing.T) {
	svc := newTestService(map[string]float64{"AAA": 12})
	holdings := fakeHoldings{holdings: []domain.Holding{{Ticker: "AAA", Quantity: 2, AcquisitionPrice: 10, Currency: "EUR"}}, currency: "EUR"}
	store := &fakeStore{}
	bus := events.NewBus()
	var emitted *events.Event
	bus.Subscribe(events.ValuationCompleted, func(e *events.Event) { emitted = e })

	history := NewHistory(svc, holdings, nil, store, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	res, err := history.Run(context.Background(), Request{Start: mustDay(t, "2024-01-01"), End: mustDay(t, "2024-01-05")})
	require.NoError(t, err)

	assert.Len(t, res.Totals, 5)
	assert.Len(t, store.saved, 5)
	assert.Equal(t, "EUR", store.saved[0].Currency)
	assert.Equal(t, []string{CompositionKey(ModeCurrent, domain.IntervalDaily, holdings.holdings)}, store.savedKeys)
	require.NotNil(t, emitted)
	assert.Equal(t, "current", emitted.Data["mode"])
}

func TestHistory_RunJournal(t *testing.T) {
	svc := newTestService(map[string]float64{"AAA": 12})
	snaps := fakeSnapshots{snaps: []domain.PortfolioSnapshot{
		{Date: mustDay(t, "2024-01-01"), Holdings: []domain.Holding{{Ticker: "AAA", Quantity: 1, AcquisitionPrice: 10, Currency: "EUR"}}},
	}}
	history := NewHistory(svc, fakeHoldings{currency: "EUR"}, snaps, nil, nil, zerolog.Nop())

	res, err := history.Run(context.Background(), Request{Start: mustDay(t, "2024-01-01"), End: mustDay(t, "2024-01-02"), Mode: ModeJournal})
	require.NoError(t, err)
	assert.Len(t, res.Totals, 2)

	failing := NewHistory(svc, fakeHoldings{currency: "EUR"}, fakeSnapshots{err: errors.New("db down")}, nil, nil, zerolog.Nop())
	_, err = failing.Run(context.Background(), Request{Start: mustDay(t, "2024-01-01"), End: mustDay(t, "2024-01-02"), Mode: ModeJournal})
	assert.Error(t, err)

	noStore := NewHistory(svc, fakeHoldings{currency: "EUR"}, nil, nil, nil, zerolog.Nop())
	_, err = noStore.Run(context.Background(), Request{Mode: ModeJournal})
	assert.Error(t, err)
}

func TestHistory_TotalsUsesCoveringStore(t *testing.T) {
	start, end := mustDay(t, "2024-01-01"), mustDay(t, "2024-01-02")
	store := &fakeStore{stored: []domain.DailyTotal{
		{Date: start, Current: 1, Currency: "EUR"},
		{Date: end, Current: 2, Currency: "EUR"},
	}, storedKey: CompositionKey(ModeCurrent, domain.IntervalDaily, nil)}
	svc := newTestService(map[string]float64{"AAA": 99})
	history := NewHistory(svc, fakeHoldings{currency: "EUR"}, nil, store, nil, zerolog.Nop())

	totals, err := history.Totals(context.Background(), start, end, "")
	require.NoError(t, err)
	assert.Equal(t, store.stored, totals)
	assert.Empty(t, store.saved)
}

func TestHistory_TotalsReconstructsOnMiss(t *testing.T) {
	start, end := mustDay(t, "2024-01-01"), mustDay(t, "2024-01-05")
	svc := newTestService(map[string]float64{"AAA": 12})
	holdings := fakeHoldings{holdings: []domain.Holding{{Ticker: "AAA", Quantity: 1, AcquisitionPrice: 10, Currency: "EUR"}}, currency: "EUR"}
	store := &fakeStore{
		stored:    []domain.DailyTotal{{Date: start, Current: 1, Currency: "USD"}},
		storedKey: CompositionKey(ModeCurrent, domain.IntervalDaily, holdings.holdings),
	}
	history := NewHistory(svc, holdings, nil, store, nil, zerolog.Nop())

	totals, err := history.Totals(context.Background(), start, end, "EUR")
	require.NoError(t, err)
	require.Len(t, totals, 5)
	assert.Equal(t, 12.0, totals[0].Current)
	assert.Len(t, store.saved, 5)
}

func TestHistory_TotalsFollowHoldingsChange(t *testing.T) {
	start, end := mustDay(t, "2024-01-01"), mustDay(t, "2024-01-05")
	svc := newTestService(map[string]float64{"AAA": 12, "BBB": 50})
	holdings := &mutableHoldings{holdings: []domain.Holding{{Ticker: "AAA", Quantity: 2, AcquisitionPrice: 10, Currency: "EUR"}}}
	store := &dateStore{}
	history := NewHistory(svc, holdings, nil, store, nil, zerolog.Nop())

	before, err := history.Totals(context.Background(), start, end, "EUR")
	require.NoError(t, err)
	require.Len(t, before, 5)
	assert.Equal(t, 24.0, before[0].Current)

	// A new import replaces the composition
	holdings.holdings = []domain.Holding{{Ticker: "BBB", Quantity: 100, AcquisitionPrice: 40, Currency: "EUR"}}

	after, err := history.Totals(context.Background(), start, end, "EUR")
	require.NoError(t, err)
	fresh, err := svc.Reconstruct(context.Background(), holdings.holdings, start, end, "EUR")
	require.NoError(t, err)
	assert.Equal(t, fresh.Totals, after)
	assert.Equal(t, 5000.0, after[0].Current)

	// Unchanged holdings are served from the store
	again, err := history.Totals(context.Background(), start, end, "EUR")
	require.NoError(t, err)
	assert.Equal(t, after, again)
}

func TestHistory_JournalRunIsNotPersisted(t *testing.T) {
	svc := newTestService(map[string]float64{"AAA": 12})
	snaps := fakeSnapshots{snaps: []domain.PortfolioSnapshot{
		{Date: mustDay(t, "2024-01-01"), Holdings: []domain.Holding{{Ticker: "AAA", Quantity: 1, AcquisitionPrice: 10, Currency: "EUR"}}},
	}}
	store := &fakeStore{}
	history := NewHistory(svc, fakeHoldings{currency: "EUR"}, snaps, store, nil, zerolog.Nop())

	res, err := history.Run(context.Background(), Request{Start: mustDay(t, "2024-01-01"), End: mustDay(t, "2024-01-05"), Mode: ModeJournal})
	require.NoError(t, err)
	assert.Len(t, res.Totals, 5)
	assert.Empty(t, store.saved)
}

func TestCompositionKey(t *testing.T) {
	a := domain.Holding{Ticker: "AAA", Quantity: 2, AcquisitionPrice: 10, Currency: "eur"}
	b := domain.Holding{Ticker: "BBB", Quantity: 1, AcquisitionPrice: 5, Currency: "USD", AdjustmentFactor: 0.01}
	base := CompositionKey(ModeCurrent, domain.IntervalDaily, []domain.Holding{a, b})

	assert.Equal(t, base, CompositionKey(ModeCurrent, domain.IntervalDaily, []domain.Holding{b, a}), "order independent")
	assert.Equal(t, base, CompositionKey(ModeCurrent, domain.IntervalDaily, []domain.Holding{a, b, {Ticker: "ZZZ"}}), "zero quantity ignored")

	named := a
	named.Name, named.Category = "Alpha", "Asie"
	assert.Equal(t, base, CompositionKey(ModeCurrent, domain.IntervalDaily, []domain.Holding{named, b}))

	more := a
	more.Quantity = 3
	assert.NotEqual(t, base, CompositionKey(ModeCurrent, domain.IntervalDaily, []domain.Holding{more, b}))
	assert.NotEqual(t, base, CompositionKey(ModeCurrent, domain.IntervalWeekly, []domain.Holding{a, b}))
	assert.NotEqual(t, base, CompositionKey(ModeJournal, domain.IntervalDaily, []domain.Holding{a, b}))
}
