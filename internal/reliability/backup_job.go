package reliability

import (
	"context"
	"time"

	"github.com/aristath/beam/internal/events"
	"github.com/rs/zerolog"
)

// BackupJob uploads a backup and rotates old ones
type BackupJob struct {
	service       *BackupService
	events        *events.Manager
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job. eventManager may be nil.
func NewBackupJob(service *BackupService, retentionDays int, eventManager *events.Manager, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		events:        eventManager,
		retentionDays: retentionDays,
		timeout:       15 * time.Minute,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	info, err := j.service.CreateAndUpload(ctx)
	if err != nil {
		j.events.EmitError("backup", err, nil)
		return err
	}

	j.events.EmitTyped("backup", &events.BackupCompletedData{
		Key:      info.Key,
		Bytes:    info.SizeBytes,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	})

	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
