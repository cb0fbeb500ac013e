package models

import "time"

type SecretKind string

const (
	SecretKindRefreshToken SecretKind = "refresh_token"
)

// MailboxCredential is the per-user mailbox connection. Secret holds the
// decrypted refresh token in memory only; it is never serialized.
type MailboxCredential struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"user_id" db:"user_id"`
	MailboxAddress string     `json:"mailbox_address" db:"mailbox_address"`
	SecretKind     SecretKind `json:"secret_kind" db:"secret_kind"`
	Secret         string     `json:"-" db:"-"`
	Active         bool       `json:"active" db:"active"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
