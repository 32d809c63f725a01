// Package events provides in-process event publication for portfolio activity.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	ValuationCompleted EventType = "VALUATION_COMPLETED"
	SnapshotSaved      EventType = "SNAPSHOT_SAVED"
	SnapshotDeleted    EventType = "SNAPSHOT_DELETED"
	PortfolioImported  EventType = "PORTFOLIO_IMPORTED"
	CurrencyChanged    EventType = "CURRENCY_CHANGED"
	CacheCleaned       EventType = "CACHE_CLEANED"
	BackupCompleted    EventType = "BACKUP_COMPLETED"
	ErrorOccurred      EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type a subscriber may listen to
var AllTypes = []EventType{
	ValuationCompleted,
	SnapshotSaved,
	SnapshotDeleted,
	PortfolioImported,
	CurrencyChanged,
	CacheCleaned,
	BackupCompleted,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
