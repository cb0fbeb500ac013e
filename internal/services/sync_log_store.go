package services

import (
	"context"
	"database/sql"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/models"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

type SyncLogWriter interface {
	Append(ctx context.Context, entry *models.SyncLogEntry) (*models.SyncLogEntry, error)
}

type SyncLogReader interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.SyncLogEntry, error)
}

type SyncLogRepository interface {
	SyncLogWriter
	SyncLogReader
}

type SyncLogStore struct {
	db *sql.DB
}

func NewSyncLogStore(db *sql.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

// Append inserts one entry. An empty AccountID is stored as NULL.
func (s *SyncLogStore) Append(ctx context.Context, entry *models.SyncLogEntry) (*models.SyncLogEntry, error) {
	accountID := sql.NullString{String: entry.AccountID, Valid: entry.AccountID != ""}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sync_log (account_id, user_id, status, message, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		accountID, entry.UserID, string(entry.Status), entry.Message).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "sync_log.append", err)
	}
	return entry, nil
}

func (s *SyncLogStore) ListRecent(ctx context.Context, userID string, limit int) ([]models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	limit = min(limit, maxLogLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(account_id, ''), user_id, status, message, created_at
		FROM sync_log
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "sync_log.list", err)
	}
	defer rows.Close()

	entries := []models.SyncLogEntry{}
	for rows.Next() {
		var e models.SyncLogEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.UserID, &e.Status, &e.Message, &e.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "sync_log.list", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "sync_log.list", err)
	}
	return entries, nil
}
