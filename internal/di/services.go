package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/beam/internal/clients/exchangerate"
	"github.com/aristath/beam/internal/clients/yahoo"
	"github.com/aristath/beam/internal/config"
	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/aristath/beam/internal/modules/charts"
	"github.com/aristath/beam/internal/modules/currency"
	"github.com/aristath/beam/internal/modules/importer"
	"github.com/aristath/beam/internal/modules/momentum"
	"github.com/aristath/beam/internal/modules/portfolio"
	"github.com/aristath/beam/internal/modules/valuation"
	"github.com/aristath/beam/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	yahooTimeout  = 30 * time.Second
	remoteTimeout = 30 * time.Second
)

// priceSource is what a vendor client must provide
type priceSource interface {
	marketdata.Source
	marketdata.QuoteSource
}

// newPriceSource picks the Yahoo client named by the configuration
func newPriceSource(cfg *config.Config, log zerolog.Logger) priceSource {
	if cfg.PriceSource == config.PriceSourceNative {
		return yahoo.NewNativeClient(log)
	}
	return yahoo.NewChartClient(yahoo.DefaultBaseURL, yahooTimeout, log)
}

// InitializeServices creates the market data stack and domain services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	upstream := newPriceSource(cfg, log)
	container.Source = marketdata.NewCachedSource(upstream, upstream, container.ClientData, log)
	container.FX = marketdata.NewFXTableBuilder(container.Source, log)
	if cfg.FXFallback {
		container.FX.SetFallback(exchangerate.NewClient(exchangerate.DefaultBaseURL, container.ClientData, log))
	}
	container.Converter = currency.NewConverter(log)

	container.Store = portfolio.NewStore(cfg.TargetCurrency)
	container.PortfolioService = portfolio.NewPortfolioService(
		container.Store, container.Source, container.FX, cfg.FetchWorkers, log)

	container.Valuation = valuation.NewService(container.Source, container.Source, cfg.FetchWorkers, log)
	container.History = valuation.NewHistory(
		container.Valuation,
		container.Store,
		container.Snapshots,
		container.Historical,
		container.EventManager,
		log,
	)
	container.Momentum = momentum.NewService(container.Source, cfg.FetchWorkers, log)
	container.Charts = charts.NewService(container.History, charts.NewRenderer(log), log)

	container.Importer = importer.New(log)
	container.RemoteFetcher = importer.NewRemoteFetcher(remoteTimeout)

	container.Scheduler = scheduler.New(log)
	container.StartedAt = time.Now()

	log.Info().Str("price_source", cfg.PriceSource).Msg("Services initialized")
}

// RestorePortfolio loads the starting composition: the latest stored
// snapshot, else the configured file, else the configured URL. A failed
// remote fetch is logged and leaves the portfolio empty.
func RestorePortfolio(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	snaps, err := container.Snapshots.List()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(snaps) > 0 {
		latest := snaps[len(snaps)-1]
		container.Store.Restore(latest)
		log.Info().
			Str("date", domain.DateKey(latest.Date)).
			Int("holdings", len(latest.Holdings)).
			Msg("Portfolio restored from snapshot")
		return nil
	}

	var res *importer.Result
	source := ""
	switch {
	case cfg.PortfolioFile != "":
		f, err := os.Open(cfg.PortfolioFile)
		if err != nil {
			return fmt.Errorf("failed to open portfolio file: %w", err)
		}
		defer f.Close()
		res, err = container.Importer.Import(f, filepath.Base(cfg.PortfolioFile))
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", cfg.PortfolioFile, err)
		}
		source = cfg.PortfolioFile
	case cfg.PortfolioURL != "":
		res, err = container.Importer.FetchRemote(ctx, container.RemoteFetcher, cfg.PortfolioURL)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.PortfolioURL).Msg("Remote portfolio unavailable, starting empty")
			return nil
		}
		source = cfg.PortfolioURL
	default:
		log.Info().Msg("No snapshot or portfolio source configured, starting empty")
		return nil
	}

	now := time.Now()
	container.Store.Replace(res.Holdings, res.BatchID, now)
	if len(res.Holdings) > 0 {
		if _, err := container.Snapshots.Save(domain.PortfolioSnapshot{
			Date:           domain.Day(now),
			TargetCurrency: container.Store.TargetCurrency(),
			Holdings:       res.Holdings,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to save initial snapshot")
		}
	}

	container.EventManager.EmitTyped("di", &events.PortfolioImportedData{
		BatchID:  res.BatchID,
		Source:   source,
		Holdings: len(res.Holdings),
		Rejected: len(res.Errors),
	})
	log.Info().
		Str("source", source).
		Int("holdings", len(res.Holdings)).
		Int("rejected", len(res.Errors)).
		Msg("Portfolio imported")
	return nil
}
