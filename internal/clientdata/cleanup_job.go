package clientdata

import (
	"github.com/rs/zerolog"
)

// Evictor is implemented by in-memory caches that can drop expired entries.
type Evictor interface {
	Evict() int
}

// CleanupJob removes expired entries from the persistent tables and the
// registered in-memory caches. It is scheduled daily.
type CleanupJob struct {
	repo    *Repository
	caches  map[string]Evictor
	log     zerolog.Logger
	onClean func(persistent, memory int64)
}

// NewCleanupJob creates a new client data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:   repo,
		caches: make(map[string]Evictor),
		log:    log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// RegisterCache adds an in-memory cache to evict on each run.
func (j *CleanupJob) RegisterCache(name string, c Evictor) {
	j.caches[name] = c
}

// OnClean sets a callback invoked after every successful run.
func (j *CleanupJob) OnClean(fn func(persistent, memory int64)) {
	j.onClean = fn
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	var persistent int64
	if j.repo != nil {
		results, err := j.repo.DeleteAllExpired()
		if err != nil {
			j.log.Error().Err(err).Msg("Failed to delete expired client data")
			return err
		}
		for table, count := range results {
			if count > 0 {
				j.log.Info().
					Str("table", table).
					Int64("deleted", count).
					Msg("Cleaned up expired cache entries")
			}
			persistent += count
		}
	}

	var memory int64
	for name, c := range j.caches {
		if n := c.Evict(); n > 0 {
			j.log.Debug().Str("cache", name).Int("evicted", n).Msg("Evicted in-memory entries")
			memory += int64(n)
		}
	}

	if persistent+memory > 0 {
		j.log.Info().
			Int64("persistent_deleted", persistent).
			Int64("memory_evicted", memory).
			Msg("Client data cleanup completed")
	}

	if j.onClean != nil {
		j.onClean(persistent, memory)
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
