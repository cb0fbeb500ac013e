package models

import "time"

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusWarning SyncStatus = "warning"
	SyncStatusError   SyncStatus = "error"
)

// SyncLogEntry is one append-only row per orchestrator run. AccountID is empty
// when the pass failed before a credential was loaded.
type SyncLogEntry struct {
	ID        int64      `json:"id" db:"id"`
	AccountID string     `json:"account_id,omitempty" db:"account_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Status    SyncStatus `json:"status" db:"status"`
	Message   string     `json:"message" db:"message"`
	CreatedAt time.Time  `json:"timestamp" db:"created_at"`
}
