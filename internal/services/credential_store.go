package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/models"
	"github.com/ledgerly/backend/internal/vault"
)

// CredentialRepository persists one mailbox credential per user. Secrets are
// sealed before they reach the database and opened on read.
type CredentialRepository interface {
	GetActive(ctx context.Context, userID string) (*models.MailboxCredential, error)
	Save(ctx context.Context, cred *models.MailboxCredential) (*models.MailboxCredential, error)
	Deactivate(ctx context.Context, userID string) error
	RotateSecret(ctx context.Context, credentialID, secret string) error
	MarkSynced(ctx context.Context, credentialID string, at time.Time) error
}

type CredentialStore struct {
	db     *sql.DB
	sealer vault.Sealer
}

func NewCredentialStore(db *sql.DB, sealer vault.Sealer) *CredentialStore {
	return &CredentialStore{db: db, sealer: sealer}
}

func (s *CredentialStore) GetActive(ctx context.Context, userID string) (*models.MailboxCredential, error) {
	const op = "credentials.get_active"

	var (
		cred       models.MailboxCredential
		ciphertext string
		lastSynced sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, mailbox_address, secret_kind, secret_ciphertext, active, last_synced_at, created_at, updated_at
		FROM mailbox_credentials
		WHERE user_id = $1 AND active = TRUE`, userID).
		Scan(&cred.ID, &cred.UserID, &cred.MailboxAddress, &cred.SecretKind, &ciphertext,
			&cred.Active, &lastSynced, &cred.CreatedAt, &cred.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotConfigured, op, "no active mailbox credential; connect your mailbox")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, op, err)
	}

	secret, err := s.sealer.Open(ciphertext)
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindNotConfigured, op, err, "stored mailbox credential is unreadable; reconnect your mailbox")
	}
	cred.Secret = string(secret)
	if lastSynced.Valid {
		cred.LastSyncedAt = &lastSynced.Time
	}

	return &cred, nil
}

// Save creates or replaces the user's credential and marks it active.
func (s *CredentialStore) Save(ctx context.Context, cred *models.MailboxCredential) (*models.MailboxCredential, error) {
	const op = "credentials.save"

	ciphertext, err := s.sealer.Seal([]byte(cred.Secret))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.SecretKind == "" {
		cred.SecretKind = models.SecretKindRefreshToken
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO mailbox_credentials (id, user_id, mailbox_address, secret_kind, secret_ciphertext, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			mailbox_address = EXCLUDED.mailbox_address,
			secret_kind = EXCLUDED.secret_kind,
			secret_ciphertext = EXCLUDED.secret_ciphertext,
			active = TRUE,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		cred.ID, cred.UserID, cred.MailboxAddress, cred.SecretKind, ciphertext).
		Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, op, err)
	}

	cred.Active = true
	return cred, nil
}

func (s *CredentialStore) Deactivate(ctx context.Context, userID string) error {
	const op = "credentials.deactivate"

	result, err := s.db.ExecContext(ctx, `
		UPDATE mailbox_credentials SET active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND active = TRUE`, userID)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindStore, op, err)
	}
	if rowsAffected == 0 {
		return apperr.New(apperr.KindNotConfigured, op, "no active mailbox credential")
	}
	return nil
}

func (s *CredentialStore) RotateSecret(ctx context.Context, credentialID, secret string) error {
	const op = "credentials.rotate"

	ciphertext, err := s.sealer.Seal([]byte(secret))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE mailbox_credentials SET secret_ciphertext = $1, updated_at = NOW()
		WHERE id = $2`, ciphertext, credentialID); err != nil {
		return apperr.Wrap(apperr.KindStore, op, err)
	}
	return nil
}

func (s *CredentialStore) MarkSynced(ctx context.Context, credentialID string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE mailbox_credentials SET last_synced_at = $1 WHERE id = $2`, at, credentialID); err != nil {
		return apperr.Wrap(apperr.KindStore, "credentials.mark_synced", err)
	}
	return nil
}
