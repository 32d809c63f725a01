package scheduler

import (
	"context"
	"time"

	"github.com/aristath/beam/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// HistoryRunner reconstructs and persists daily totals
type HistoryRunner interface {
	Run(ctx context.Context, req valuation.Request) (valuation.Result, error)
}

// RefreshTotalsJob rebuilds the last year of daily totals so the
// historical tables and indicator charts read from storage.
type RefreshTotalsJob struct {
	history HistoryRunner
	period  string
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewRefreshTotalsJob creates a new refresh job over the default period
func NewRefreshTotalsJob(history HistoryRunner, timeout time.Duration, log zerolog.Logger) *RefreshTotalsJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &RefreshTotalsJob{
		history: history,
		period:  valuation.DefaultPeriod,
		timeout: timeout,
		now:     time.Now,
		log:     log.With().Str("job", "refresh_totals").Logger(),
	}
}

// Name returns the job name
func (j *RefreshTotalsJob) Name() string {
	return "refresh_totals"
}

// Run executes the refresh
func (j *RefreshTotalsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start, end := valuation.ParsePeriod(j.period, j.now())
	res, err := j.history.Run(ctx, valuation.Request{Start: start, End: end, Mode: valuation.ModeCurrent})
	if err != nil {
		return err
	}

	j.log.Info().
		Str("period", j.period).
		Int("days", len(res.Totals)).
		Int("warnings", len(res.Warnings)).
		Msg("Daily totals refreshed")
	return nil
}
