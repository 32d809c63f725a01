package events

import (
	"encoding/json"
)

// EventData is implemented by every typed payload
type EventData interface {
	EventType() EventType
}

// ValuationCompletedData contains data for ValuationCompleted events
type ValuationCompletedData struct {
	Mode     string `json:"mode"`
	Currency string `json:"currency"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Days     int    `json:"days"`
	Warnings int    `json:"warnings"`
}

// EventType returns the event type for ValuationCompletedData
func (d *ValuationCompletedData) EventType() EventType {
	return ValuationCompleted
}

// SnapshotSavedData contains data for SnapshotSaved events
type SnapshotSavedData struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Holdings int    `json:"holdings"`
}

// EventType returns the event type for SnapshotSavedData
func (d *SnapshotSavedData) EventType() EventType {
	return SnapshotSaved
}

// SnapshotDeletedData contains data for SnapshotDeleted events
type SnapshotDeletedData struct {
	Date string `json:"date"`
}

// EventType returns the event type for SnapshotDeletedData
func (d *SnapshotDeletedData) EventType() EventType {
	return SnapshotDeleted
}

// PortfolioImportedData contains data for PortfolioImported events
type PortfolioImportedData struct {
	BatchID  string `json:"batch_id"`
	Source   string `json:"source"`
	Holdings int    `json:"holdings"`
	Rejected int    `json:"rejected"`
}

// EventType returns the event type for PortfolioImportedData
func (d *PortfolioImportedData) EventType() EventType {
	return PortfolioImported
}

// CurrencyChangedData contains data for CurrencyChanged events
type CurrencyChangedData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// EventType returns the event type for CurrencyChangedData
func (d *CurrencyChangedData) EventType() EventType {
	return CurrencyChanged
}

// CacheCleanedData contains data for CacheCleaned events
type CacheCleanedData struct {
	Persistent int64 `json:"persistent"`
	Memory     int64 `json:"memory"`
}

// EventType returns the event type for CacheCleanedData
func (d *CacheCleanedData) EventType() EventType {
	return CacheCleaned
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key      string `json:"key"`
	Bytes    int64  `json:"bytes"`
	Duration string `json:"duration"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// toMap flattens typed data into the generic event payload
func toMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
