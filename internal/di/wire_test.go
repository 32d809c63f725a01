package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/beam/internal/config"
	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:        t.TempDir(),
		Port:           8001,
		TargetCurrency: "EUR",
		PriceSource:    config.PriceSourceChart,
		FetchWorkers:   2,
		Schedules: config.Schedules{
			Cleanup:     "0 3 * * *",
			Refresh:     "30 18 * * 1-5",
			Maintenance: "0 4 * * 0",
			WALCheck:    "@hourly",
		},
		Backup: config.BackupConfig{Prefix: "beam-backups/"},
	}
}

func wire(t *testing.T, cfg *config.Config) (*Container, *JobInstances) {
	t.Helper()
	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)
	return container, jobs
}

func TestWire(t *testing.T) {
	container, jobs := wire(t, testConfig(t))

	assert.NotNil(t, container.PortfolioDB)
	assert.NotNil(t, container.ClientDataDB)
	assert.NotNil(t, container.Snapshots)
	assert.NotNil(t, container.Historical)
	assert.NotNil(t, container.Source)
	assert.NotNil(t, container.PortfolioService)
	assert.NotNil(t, container.History)
	assert.NotNil(t, container.Momentum)
	assert.NotNil(t, container.Charts)
	assert.NotNil(t, container.EventManager)

	assert.Equal(t, "EUR", container.Store.TargetCurrency())
	assert.Empty(t, container.Store.Holdings())

	all := jobs.All()
	assert.Len(t, all, 4)
	assert.Contains(t, all, "refresh_totals")
	assert.Contains(t, all, "check_wal_checkpoints")
	assert.Contains(t, all, "maintenance")
	assert.Nil(t, jobs.Backup)
}

func TestWire_BackupEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup = config.BackupConfig{
		Bucket:        "beam",
		Endpoint:      "http://127.0.0.1:9000",
		Region:        "auto",
		AccessKey:     "key",
		SecretKey:     "secret",
		Prefix:        "beam-backups/",
		RetentionDays: 30,
	}
	cfg.Schedules.Backup = "0 2 * * *"

	_, jobs := wire(t, cfg)

	require.NotNil(t, jobs.Backup)
	assert.Contains(t, jobs.All(), "backup")
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedules.Refresh = "not a schedule"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh_totals")
}

func TestRestorePortfolio_FromFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PortfolioFile = filepath.Join(t.TempDir(), "portefeuille.csv")
	content := "Ticker;Quantité;Acquisition;Devise;Catégorie\nAAA;10;100;USD;Asie\nBBB;5;20,5;EUR;Minières\n"
	require.NoError(t, os.WriteFile(cfg.PortfolioFile, []byte(content), 0644))

	container, _ := wire(t, cfg)

	holdings := container.Store.Holdings()
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAA", holdings[0].Ticker)
	assert.InDelta(t, 20.5, holdings[1].AcquisitionPrice, 1e-9)

	snaps, err := container.Snapshots.List()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Len(t, snaps[0].Holdings, 2)
}

func TestRestorePortfolio_PrefersLatestSnapshot(t *testing.T) {
	cfg := testConfig(t)
	container, _ := wire(t, cfg)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, ticker := range []string{"OLD", "NEW"} {
		_, err := container.Snapshots.Save(domain.PortfolioSnapshot{
			Date:           day.AddDate(0, 0, i),
			TargetCurrency: "USD",
			Holdings:       []domain.Holding{{Ticker: ticker, Quantity: 1, AcquisitionPrice: 1, Currency: "USD"}},
		})
		require.NoError(t, err)
	}

	// A file is configured but the stored snapshot wins
	cfg.PortfolioFile = filepath.Join(t.TempDir(), "missing.csv")
	require.NoError(t, RestorePortfolio(context.Background(), container, cfg, zerolog.Nop()))

	holdings := container.Store.Holdings()
	require.Len(t, holdings, 1)
	assert.Equal(t, "NEW", holdings[0].Ticker)
	assert.Equal(t, "USD", container.Store.TargetCurrency())
}

func TestRestorePortfolio_MissingFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PortfolioFile = filepath.Join(t.TempDir(), "missing.csv")

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portfolio file")
}

func TestCleanupJob_EmitsCacheCleaned(t *testing.T) {
	container, jobs := wire(t, testConfig(t))

	got := make(chan *events.Event, 1)
	unsubscribe := container.EventBus.Subscribe(events.CacheCleaned, func(e *events.Event) {
		got <- e
	})
	defer unsubscribe()

	require.NoError(t, jobs.Cleanup.Run())

	select {
	case e := <-got:
		assert.Equal(t, events.CacheCleaned, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("cache cleaned event not emitted")
	}
}
