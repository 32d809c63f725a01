package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/beam/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Free-space thresholds for the data directory
const (
	criticalFreeBytes = 500 << 20
	lowFreeBytes      = 5 << 30
)

// MaintenanceJob checks database integrity, truncates WAL files, vacuums the
// durable databases and checks free disk space
type MaintenanceJob struct {
	databases map[string]*database.DB
	dataDir   string
	usage     func(path string) (*disk.UsageStat, error)
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		usage:     disk.Usage,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for name, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Str("database", name).Err(err).Msg("Integrity check failed")
			return err
		}

		if _, err := db.Conn().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			// Not fatal, the next run retries
			j.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
		}

		if err := j.vacuumDatabase(ctx, db, name); err != nil {
			j.log.Error().Str("database", name).Err(err).Msg("VACUUM failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed")

	return nil
}

// vacuumDatabase performs VACUUM on a database
func (j *MaintenanceJob) vacuumDatabase(ctx context.Context, db *database.DB, name string) error {
	before, err := db.GetStats()
	if err != nil {
		return err
	}

	if _, err := db.Conn().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}

	after, err := db.GetStats()
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", name).
		Int64("pages_before", before.PageCount).
		Int64("pages_after", after.PageCount).
		Int64("reclaimed_bytes", (before.PageCount-after.PageCount)*before.PageSize).
		Msg("VACUUM completed")

	return nil
}

// checkDiskSpace fails when the data directory is nearly full
func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := j.usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().
		Float64("available_gb", availableGB).
		Float64("used_percent", usage.UsedPercent).
		Msg("Disk space check")

	switch {
	case usage.Free < criticalFreeBytes:
		j.log.Error().Float64("available_gb", availableGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	case usage.Free < lowFreeBytes:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
