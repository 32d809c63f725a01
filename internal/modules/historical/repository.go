// Package historical stores the daily portfolio totals produced by valuation.
package historical

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/beam/internal/database"
	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// ErrNoTotals is returned by Latest on an empty table
var ErrNoTotals = errors.New("no daily totals stored")

// Repository reads and writes portfolio_daily_totals
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a daily totals repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "daily_totals").Logger(),
	}
}

// Upsert writes totals in one transaction, replacing rows with the same date.
// composition tags the rows with the inputs they were computed from.
func (r *Repository) Upsert(composition string, totals []domain.DailyTotal) error {
	if len(totals) == 0 {
		return nil
	}
	done := utils.MeasureDBQuery("daily_totals.upsert", r.log)
	updatedAt := r.now().Unix()

	var affected int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO portfolio_daily_totals (date, acquisition, current, h52, lt, currency, composition, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				acquisition = excluded.acquisition,
				current = excluded.current,
				h52 = excluded.h52,
				lt = excluded.lt,
				currency = excluded.currency,
				composition = excluded.composition,
				updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range totals {
			res, err := stmt.Exec(domain.DateKey(t.Date), t.Acquisition, t.Current, t.H52, t.LT,
				domain.NormalizeCurrency(t.Currency), composition, updatedAt)
			if err != nil {
				return fmt.Errorf("failed to upsert total for %s: %w", domain.DateKey(t.Date), err)
			}
			n, _ := res.RowsAffected()
			affected += n
		}
		return nil
	})
	if err != nil {
		return err
	}
	done(affected)
	return nil
}

// Range returns stored totals with start <= date <= end, oldest first
func (r *Repository) Range(start, end time.Time) ([]domain.DailyTotal, error) {
	return r.query(`SELECT date, acquisition, current, h52, lt, currency
		FROM portfolio_daily_totals WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		domain.DateKey(start), domain.DateKey(end))
}

// RangeFor is Range restricted to rows stored under composition
func (r *Repository) RangeFor(composition string, start, end time.Time) ([]domain.DailyTotal, error) {
	return r.query(`SELECT date, acquisition, current, h52, lt, currency
		FROM portfolio_daily_totals WHERE composition = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		composition, domain.DateKey(start), domain.DateKey(end))
}

func (r *Repository) query(query string, args ...interface{}) ([]domain.DailyTotal, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	totals := []domain.DailyTotal{}
	for rows.Next() {
		t, err := scanTotal(rows)
		if err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily totals: %w", err)
	}
	return totals, nil
}

// Latest returns the most recent stored total
func (r *Repository) Latest() (domain.DailyTotal, error) {
	row := r.db.QueryRow(`SELECT date, acquisition, current, h52, lt, currency
		FROM portfolio_daily_totals ORDER BY date DESC LIMIT 1`)
	t, err := scanTotal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyTotal{}, ErrNoTotals
	}
	return t, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTotal(sc scanner) (domain.DailyTotal, error) {
	var (
		t       domain.DailyTotal
		date    string
		h52, lt sql.NullFloat64
	)
	if err := sc.Scan(&date, &t.Acquisition, &t.Current, &h52, &lt, &t.Currency); err != nil {
		return t, err
	}
	d, err := domain.ParseDate(date)
	if err != nil {
		return t, fmt.Errorf("invalid total date %q: %w", date, err)
	}
	t.Date = d
	t.H52 = h52.Float64
	t.LT = lt.Float64
	return t, nil
}
