// Package snapshots persists dated portfolio compositions.
package snapshots

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no snapshot exists for a date
var ErrNotFound = errors.New("snapshot not found")

// Record is the stored JSON shape of one holding. Keys match the
// spreadsheet columns so exported journals read back unchanged.
type Record struct {
	Ticker           string  `json:"Ticker"`
	Quantity         float64 `json:"Quantité"`
	Acquisition      float64 `json:"Acquisition"`
	Currency         string  `json:"Devise"`
	Category         string  `json:"Catégorie,omitempty"`
	TargetLT         float64 `json:"Objectif_LT,omitempty"`
	AdjustmentFactor float64 `json:"Facteur_Ajustement_FX,omitempty"`
	Name             string  `json:"Nom,omitempty"`
}

// RecordOf converts a holding to its stored form
func RecordOf(h domain.Holding) Record {
	return Record{
		Ticker:           h.Ticker,
		Quantity:         h.Quantity,
		Acquisition:      h.AcquisitionPrice,
		Currency:         h.Currency,
		Category:         h.Category,
		TargetLT:         h.TargetLT,
		AdjustmentFactor: h.AdjustmentFactor,
		Name:             h.Name,
	}
}

func (r Record) holding() domain.Holding {
	return domain.Holding{
		Ticker:           r.Ticker,
		Name:             r.Name,
		Quantity:         r.Quantity,
		AcquisitionPrice: r.Acquisition,
		Currency:         r.Currency,
		Category:         r.Category,
		TargetLT:         r.TargetLT,
		AdjustmentFactor: r.AdjustmentFactor,
	}
}

// Repository stores snapshots in portfolio_snapshots, one per date
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save upserts the snapshot keyed by its date. A missing ID is generated
// and the stored snapshot is returned.
func (r *Repository) Save(s domain.PortfolioSnapshot) (domain.PortfolioSnapshot, error) {
	if s.Date.IsZero() {
		return s, fmt.Errorf("snapshot date is required")
	}
	s.Date = domain.Day(s.Date)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.TargetCurrency = domain.NormalizeCurrency(s.TargetCurrency)
	s.CreatedAt = r.now().UTC().Truncate(time.Second)

	records := make([]Record, len(s.Holdings))
	for i, h := range s.Holdings {
		records[i] = RecordOf(h)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return s, fmt.Errorf("failed to encode holdings: %w", err)
	}

	done := utils.MeasureDBQuery("snapshots.save", r.log)
	res, err := r.db.Exec(`
		INSERT INTO portfolio_snapshots (date, id, target_currency, holdings, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			id = excluded.id,
			target_currency = excluded.target_currency,
			holdings = excluded.holdings,
			created_at = excluded.created_at`,
		domain.DateKey(s.Date), s.ID, s.TargetCurrency, string(payload), s.CreatedAt.Unix())
	if err != nil {
		return s, fmt.Errorf("failed to save snapshot: %w", err)
	}
	n, _ := res.RowsAffected()
	done(n)

	r.log.Info().
		Str("date", domain.DateKey(s.Date)).
		Int("holdings", len(s.Holdings)).
		Msg("Snapshot saved")
	return s, nil
}

// Get returns the snapshot for date
func (r *Repository) Get(date time.Time) (domain.PortfolioSnapshot, error) {
	row := r.db.QueryRow(`SELECT date, id, target_currency, holdings, created_at
		FROM portfolio_snapshots WHERE date = ?`, domain.DateKey(date))
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PortfolioSnapshot{}, ErrNotFound
	}
	return s, err
}

// List returns every snapshot in chronological order
func (r *Repository) List() ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.Query(`SELECT date, id, target_currency, holdings, created_at
		FROM portfolio_snapshots ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []domain.PortfolioSnapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Delete removes the snapshot for date
func (r *Repository) Delete(date time.Time) error {
	res, err := r.db.Exec(`DELETE FROM portfolio_snapshots WHERE date = ?`, domain.DateKey(date))
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(sc scanner) (domain.PortfolioSnapshot, error) {
	var (
		date, payload string
		createdAt     int64
		s             domain.PortfolioSnapshot
	)
	if err := sc.Scan(&date, &s.ID, &s.TargetCurrency, &payload, &createdAt); err != nil {
		return s, err
	}

	d, err := domain.ParseDate(date)
	if err != nil {
		return s, fmt.Errorf("invalid snapshot date %q: %w", date, err)
	}
	s.Date = d
	s.CreatedAt = time.Unix(createdAt, 0).UTC()

	var records []Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return s, fmt.Errorf("failed to decode snapshot %s: %w", date, err)
	}
	s.Holdings = make([]domain.Holding, len(records))
	for i, rec := range records {
		s.Holdings[i] = rec.holding()
	}
	return s, nil
}
