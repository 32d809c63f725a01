package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/beam/internal/clientdata"
	"github.com/aristath/beam/internal/config"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/reliability"
	"github.com/aristath/beam/internal/scheduler"
	"github.com/rs/zerolog"
)

const refreshTimeout = 10 * time.Minute

type scheduledJob struct {
	spec string
	job  scheduler.Job
}

// RegisterJobs creates the background jobs and schedules them
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{}

	// Market data cache cleanup
	cleanup := clientdata.NewCleanupJob(container.ClientData, log)
	cleanup.RegisterCache("series", container.Source.SeriesCache())
	cleanup.RegisterCache("quotes", container.Source.QuoteCache())
	cleanup.RegisterCache("momentum", container.Momentum.Cache())
	cleanup.OnClean(func(persistent, memory int64) {
		container.EventManager.EmitTyped("cleanup", &events.CacheCleanedData{
			Persistent: persistent,
			Memory:     memory,
		})
	})
	jobs.Cleanup = cleanup

	jobs.Refresh = scheduler.NewRefreshTotalsJob(container.History, refreshTimeout, log)

	jobs.WALCheck = scheduler.NewCheckWALCheckpointsJob(container.PortfolioDB, container.ClientDataDB)
	jobs.WALCheck.SetLogger(log)

	jobs.Maintenance = reliability.NewMaintenanceJob(container.Databases(), cfg.DataDir, log)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(context.Background(), reliability.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create backup store: %w", err)
		}
		// client_data is a rebuildable cache and is not backed up
		service := reliability.NewBackupService(store, []reliability.Snapshotter{container.PortfolioDB}, cfg.DataDir, cfg.Backup.Prefix, log)
		jobs.Backup = reliability.NewBackupJob(service, cfg.Backup.RetentionDays, container.EventManager, log)
	}

	schedules := []scheduledJob{
		{cfg.Schedules.Cleanup, jobs.Cleanup},
		{cfg.Schedules.Refresh, jobs.Refresh},
		{cfg.Schedules.WALCheck, jobs.WALCheck},
		{cfg.Schedules.Maintenance, jobs.Maintenance},
	}
	if jobs.Backup != nil {
		schedules = append(schedules, scheduledJob{cfg.Schedules.Backup, jobs.Backup})
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.spec, s.job); err != nil {
			return nil, err
		}
	}

	log.Info().Int("jobs", len(jobs.All())).Msg("Background jobs registered")
	return jobs, nil
}
