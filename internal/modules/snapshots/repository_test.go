package snapshots

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/beam/internal/database"
	"github.com/aristath/beam/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*Repository, *sql.DB) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("portfolio")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	repo := NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
	repo.now = func() time.Time { return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC) }
	return repo, db
}

func day(s string) time.Time {
	d, _ := domain.ParseDate(s)
	return d
}

func sampleHoldings() []domain.Holding {
	return []domain.Holding{
		{Ticker: "AAA", Quantity: 10.125, AcquisitionPrice: 100.01, Currency: "USD", Category: "Minières", TargetLT: 150, AdjustmentFactor: 1, Name: "Alpha"},
		{Ticker: "BP.L", Quantity: 5, AcquisitionPrice: 480.3333333333333, Currency: "GBP", AdjustmentFactor: 0.01},
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	repo, _ := newTestRepository(t)

	saved, err := repo.Save(domain.PortfolioSnapshot{
		Date:           time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC),
		TargetCurrency: " eur",
		Holdings:       sampleHoldings(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, day("2024-06-14"), saved.Date)

	got, err := repo.Get(day("2024-06-14"))
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "EUR", got.TargetCurrency)
	assert.Equal(t, sampleHoldings(), got.Holdings)
	assert.Equal(t, time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), got.CreatedAt)
}

func TestRepository_StoredKeys(t *testing.T) {
	repo, db := newTestRepository(t)
	_, err := repo.Save(domain.PortfolioSnapshot{Date: day("2024-06-14"), TargetCurrency: "EUR", Holdings: sampleHoldings()[:1]})
	require.NoError(t, err)

	var payload string
	require.NoError(t, db.QueryRow(`SELECT holdings FROM portfolio_snapshots`).Scan(&payload))

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	require.Len(t, raw, 1)
	for _, k := range []string{"Ticker", "Quantité", "Acquisition", "Devise", "Catégorie", "Objectif_LT", "Facteur_Ajustement_FX", "Nom"} {
		assert.Contains(t, raw[0], k)
	}
}

func TestRepository_UpsertByDate(t *testing.T) {
	repo, _ := newTestRepository(t)

	first, err := repo.Save(domain.PortfolioSnapshot{Date: day("2024-06-14"), TargetCurrency: "EUR", Holdings: sampleHoldings()})
	require.NoError(t, err)
	second, err := repo.Save(domain.PortfolioSnapshot{Date: day("2024-06-14"), TargetCurrency: "USD", Holdings: sampleHoldings()[:1]})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "USD", all[0].TargetCurrency)
	assert.Len(t, all[0].Holdings, 1)
}

func TestRepository_ListIsChronological(t *testing.T) {
	repo, _ := newTestRepository(t)
	for _, d := range []string{"2024-03-01", "2023-12-29", "2024-01-15"} {
		_, err := repo.Save(domain.PortfolioSnapshot{Date: day(d), TargetCurrency: "EUR", Holdings: sampleHoldings()})
		require.NoError(t, err)
	}

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day("2023-12-29"), all[0].Date)
	assert.Equal(t, day("2024-01-15"), all[1].Date)
	assert.Equal(t, day("2024-03-01"), all[2].Date)
}

func TestRepository_DeleteAndNotFound(t *testing.T) {
	repo, _ := newTestRepository(t)
	_, err := repo.Save(domain.PortfolioSnapshot{Date: day("2024-06-14"), TargetCurrency: "EUR"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(day("2024-06-14")))
	_, err = repo.Get(day("2024-06-14"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(day("2024-06-14")), ErrNotFound)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepository_SaveRequiresDate(t *testing.T) {
	repo, _ := newTestRepository(t)
	_, err := repo.Save(domain.PortfolioSnapshot{TargetCurrency: "EUR"})
	assert.Error(t, err)
}
