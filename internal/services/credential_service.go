package services

import (
	"context"
	"strings"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/mailbox"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
)

// CredentialService connects and disconnects a user's mailbox.
type CredentialService struct {
	store   CredentialRepository
	mailbox mailbox.Client
	log     zerolog.Logger
}

func NewCredentialService(store CredentialRepository, client mailbox.Client, log zerolog.Logger) *CredentialService {
	return &CredentialService{
		store:   store,
		mailbox: client,
		log:     logger.Component(log, "credentials"),
	}
}

// Connect tests the refresh token against the provider and persists it only
// when the authenticated mailbox matches address. Rejected credentials are
// validation errors; the user has to correct them.
func (s *CredentialService) Connect(ctx context.Context, userID, address, refreshToken string) (*models.MailboxCredential, error) {
	const op = "credentials.connect"

	cred := &models.MailboxCredential{
		UserID:         userID,
		MailboxAddress: strings.ToLower(strings.TrimSpace(address)),
		SecretKind:     models.SecretKindRefreshToken,
		Secret:         strings.TrimSpace(refreshToken),
	}

	authenticated, err := s.mailbox.TestConnection(ctx, cred)
	if err != nil {
		s.log.Warn().Str("user_id", userID).Str("kind", string(apperr.KindOf(err))).Msg("Mailbox connection test failed")
		if apperr.Is(err, apperr.KindAuth) || apperr.Is(err, apperr.KindNotConfigured) {
			return nil, apperr.Wrapf(apperr.KindValidation, op, err, "mailbox rejected the credential")
		}
		return nil, err
	}

	if !strings.EqualFold(authenticated, cred.MailboxAddress) {
		return nil, apperr.New(apperr.KindValidation, op, "credential belongs to a different mailbox")
	}

	saved, err := s.store.Save(ctx, cred)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Str("account_id", saved.ID).Msg("Mailbox connected")
	return saved, nil
}

func (s *CredentialService) Disconnect(ctx context.Context, userID string) error {
	if err := s.store.Deactivate(ctx, userID); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Msg("Mailbox disconnected")
	return nil
}
