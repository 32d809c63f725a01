/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived service of the dashboard. It is
 * built once by Wire and handed to the HTTP server and the CLI commands.
 */
package di

import (
	"time"

	"github.com/aristath/beam/internal/clientdata"
	"github.com/aristath/beam/internal/database"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/aristath/beam/internal/modules/charts"
	"github.com/aristath/beam/internal/modules/currency"
	"github.com/aristath/beam/internal/modules/historical"
	"github.com/aristath/beam/internal/modules/importer"
	"github.com/aristath/beam/internal/modules/momentum"
	"github.com/aristath/beam/internal/modules/portfolio"
	"github.com/aristath/beam/internal/modules/snapshots"
	"github.com/aristath/beam/internal/modules/valuation"
	"github.com/aristath/beam/internal/reliability"
	"github.com/aristath/beam/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	PortfolioDB  *database.DB
	ClientDataDB *database.DB

	// Repositories
	ClientData *clientdata.Repository
	Snapshots  *snapshots.Repository
	Historical *historical.Repository

	// Market data
	Source    *marketdata.CachedSource
	FX        *marketdata.FXTableBuilder
	Converter *currency.Converter

	// Services
	Store            *portfolio.Store
	PortfolioService *portfolio.PortfolioService
	Valuation        *valuation.Service
	History          *valuation.History
	Momentum         *momentum.Service
	Charts           *charts.Service
	Importer         *importer.Importer
	RemoteFetcher    *importer.RemoteFetcher

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Background work
	Scheduler *scheduler.Scheduler

	StartedAt time.Time
}

// JobInstances holds the background jobs registered on the scheduler
type JobInstances struct {
	Cleanup     *clientdata.CleanupJob
	Refresh     *scheduler.RefreshTotalsJob
	WALCheck    *scheduler.CheckWALCheckpointsJob
	Maintenance *reliability.MaintenanceJob
	Backup      *reliability.BackupJob // nil when S3 is not configured
}

// All returns the non-nil jobs, keyed by name
func (j *JobInstances) All() map[string]scheduler.Job {
	all := make(map[string]scheduler.Job)
	add := func(job scheduler.Job) {
		all[job.Name()] = job
	}
	if j.Cleanup != nil {
		add(j.Cleanup)
	}
	if j.Refresh != nil {
		add(j.Refresh)
	}
	if j.WALCheck != nil {
		add(j.WALCheck)
	}
	if j.Maintenance != nil {
		add(j.Maintenance)
	}
	if j.Backup != nil {
		add(j.Backup)
	}
	return all
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"portfolio":   c.PortfolioDB,
		"client_data": c.ClientDataDB,
	}
}

// Close stops the scheduler and closes every database
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.PortfolioDB != nil {
		c.PortfolioDB.Close()
	}
	if c.ClientDataDB != nil {
		c.ClientDataDB.Close()
	}
}
