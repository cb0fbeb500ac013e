package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/audit"
	"github.com/ledgerly/backend/internal/config"
	"github.com/ledgerly/backend/internal/extractor"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/mailbox"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

type SyncState string

const (
	SyncIdle             SyncState = "idle"
	SyncCredentialLoaded SyncState = "credential_loaded"
	SyncTokenRefreshed   SyncState = "token_refreshed"
	SyncMessagesListed   SyncState = "messages_listed"
	SyncExtracting       SyncState = "extracting"
	SyncPersisted        SyncState = "persisted"
	SyncLogged           SyncState = "logged"
	SyncErrored          SyncState = "errored"
)

const logWriteTimeout = 5 * time.Second

// SyncResult summarizes one pass. Log is the entry written for it.
type SyncResult struct {
	PassID      string               `json:"pass_id"`
	State       SyncState            `json:"state"`
	Status      models.SyncStatus    `json:"status"`
	Listed      int                  `json:"listed"`
	Extracted   int                  `json:"extracted"`
	Skipped     int                  `json:"skipped"`
	FetchFailed int                  `json:"fetch_failed"`
	Persisted   int                  `json:"persisted"`
	Log         *models.SyncLogEntry `json:"log,omitempty"`
}

// SyncService runs ingestion passes. It is the only writer of sync_log and
// transactions.
type SyncService struct {
	credentials CredentialRepository
	mailbox     mailbox.Client
	ledger      TransactionUpserter
	logs        SyncLogRepository
	locker      *Locker
	audit       *audit.Logger
	cfg         *config.SyncConfig
	query       string
	log         zerolog.Logger
	now         func() time.Time
}

func NewSyncService(
	credentials CredentialRepository,
	client mailbox.Client,
	ledger TransactionUpserter,
	logs SyncLogRepository,
	locker *Locker,
	auditLog *audit.Logger,
	cfg *config.SyncConfig,
	log zerolog.Logger,
) *SyncService {
	return &SyncService{
		credentials: credentials,
		mailbox:     client,
		ledger:      ledger,
		logs:        logs,
		locker:      locker,
		audit:       auditLog,
		cfg:         cfg,
		query:       mailbox.BuildQuery(cfg),
		log:         log,
		now:         time.Now,
	}
}

func syncLockKey(userID string) string {
	return "sync:lock:" + userID
}

// Run drives one pass for userID. It writes exactly one log entry, also when
// the pass fails or ctx is cancelled. The returned result is never nil; the
// error is non-nil when the pass ended in SyncErrored or was refused.
func (s *SyncService) Run(ctx context.Context, userID string) (*SyncResult, error) {
	res := &SyncResult{PassID: uuid.NewString(), State: SyncIdle}
	log := logger.Component(logger.FromContext(ctx, s.log), "sync").With().
		Str("pass_id", res.PassID).
		Str("user_id", userID).
		Logger()

	release, ok, err := s.locker.Acquire(ctx, syncLockKey(userID), s.cfg.LockTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Sync lock unavailable, continuing without it")
	}
	if !ok {
		res.Status = models.SyncStatusWarning
		res.Log = s.writeLog(ctx, log, &models.SyncLogEntry{
			UserID:  userID,
			Status:  models.SyncStatusWarning,
			Message: "Sync skipped: another sync is already in progress",
		})
		return res, apperr.New(apperr.KindConflict, "sync.run", "a sync is already in progress")
	}
	defer release()

	if s.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PassTimeout)
		defer cancel()
	}

	cred, err := s.credentials.GetActive(ctx, userID)
	if err != nil {
		return s.fail(ctx, log, res, "", userID, err)
	}
	res.State = SyncCredentialLoaded
	log = log.With().Str("account_id", cred.ID).Logger()

	token, err := s.mailbox.RefreshAccessToken(ctx, cred)
	if err != nil {
		if mailbox.IsPermanentRefreshError(err) {
			if derr := s.credentials.Deactivate(context.WithoutCancel(ctx), userID); derr != nil {
				log.Error().Err(derr).Msg("Failed to deactivate rejected credential")
			} else {
				log.Warn().Msg("Mailbox credential rejected, marked inactive")
			}
		}
		return s.fail(ctx, log, res, cred.ID, userID, err)
	}
	if token.RefreshToken != "" && token.RefreshToken != cred.Secret {
		if err := s.credentials.RotateSecret(ctx, cred.ID, token.RefreshToken); err != nil {
			log.Error().Err(err).Msg("Failed to persist rotated refresh token")
		} else {
			log.Info().Str("refresh_token", logger.MaskSecret(token.RefreshToken)).Msg("Refresh token rotated")
		}
	}
	res.State = SyncTokenRefreshed

	refs, err := drain(s.mailbox.ListMessages(ctx, token, s.query, s.cfg.MaxResults))
	if err != nil {
		return s.fail(ctx, log, res, cred.ID, userID, err)
	}
	res.State = SyncMessagesListed
	res.Listed = len(refs)

	res.State = SyncExtracting
	src := extractor.Source{UserID: userID, AccountID: cred.ID, MailboxAddress: cred.MailboxAddress}
	candidates := make([]*models.TransactionCandidate, 0, len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, log, res, cred.ID, userID, apperr.Wrapf(apperr.KindProvider, "sync.extract", err, "sync cancelled"))
		}

		raw, err := s.mailbox.FetchMessage(ctx, token, ref)
		if err != nil {
			if ctx.Err() != nil || apperr.Is(err, apperr.KindAuth) {
				return s.fail(ctx, log, res, cred.ID, userID, err)
			}
			res.FetchFailed++
			log.Warn().Err(err).Str("message_id", ref.ID).Msg("Failed to fetch message, skipping")
			continue
		}

		c, err := extractor.Extract(raw, src)
		if err != nil {
			res.Skipped++
			log.Debug().Str("message_id", ref.ID).Str("reason", apperr.Message(err)).Msg("Message skipped")
			continue
		}
		candidates = append(candidates, c)
	}
	res.Extracted = len(candidates)

	persisted, err := s.ledger.UpsertAll(ctx, userID, candidates)
	res.Persisted = persisted
	if err != nil && persisted == 0 {
		return s.fail(ctx, log, res, cred.ID, userID, err)
	}
	if err != nil {
		log.Error().Err(err).Msg("Some transactions were not stored")
	}
	res.State = SyncPersisted

	if err := s.credentials.MarkSynced(ctx, cred.ID, s.now()); err != nil {
		log.Warn().Err(err).Msg("Failed to record sync time")
	}

	res.Status, res.Log = s.summarize(ctx, log, res, cred.ID, userID)
	res.State = SyncLogged
	s.audit.LogSync(res.PassID, userID, string(res.Status), res.Persisted, res.Skipped+res.FetchFailed)

	log.Info().
		Str("status", string(res.Status)).
		Int("listed", res.Listed).
		Int("persisted", res.Persisted).
		Int("skipped", res.Skipped).
		Int("fetch_failed", res.FetchFailed).
		Msg("Sync pass completed")

	return res, nil
}

// RecentLogs returns the user's log feed, newest first.
func (s *SyncService) RecentLogs(ctx context.Context, userID string, limit int) ([]models.SyncLogEntry, error) {
	return s.logs.ListRecent(ctx, userID, limit)
}

func (s *SyncService) summarize(ctx context.Context, log zerolog.Logger, res *SyncResult, accountID, userID string) (models.SyncStatus, *models.SyncLogEntry) {
	status := models.SyncStatusSuccess
	parts := []string{fmt.Sprintf("Processed %d transactions from %d messages", res.Persisted, res.Listed)}

	if res.FetchFailed > 0 {
		status = models.SyncStatusWarning
		parts = append(parts, fmt.Sprintf("%d messages could not be fetched", res.FetchFailed))
	}
	if lost := res.Extracted - res.Persisted; lost > 0 {
		status = models.SyncStatusWarning
		parts = append(parts, fmt.Sprintf("%d transactions were not stored", lost))
	}

	return status, s.writeLog(ctx, log, &models.SyncLogEntry{
		AccountID: accountID,
		UserID:    userID,
		Status:    status,
		Message:   strings.Join(parts, "; "),
	})
}

func (s *SyncService) fail(ctx context.Context, log zerolog.Logger, res *SyncResult, accountID, userID string, err error) (*SyncResult, error) {
	failedIn := res.State
	res.State = SyncErrored
	res.Status = models.SyncStatusError

	log.Error().Err(err).Str("failed_in", string(failedIn)).Str("kind", string(apperr.KindOf(err))).Msg("Sync pass failed")
	res.Log = s.writeLog(ctx, log, &models.SyncLogEntry{
		AccountID: accountID,
		UserID:    userID,
		Status:    models.SyncStatusError,
		Message:   apperr.Message(err),
	})
	s.audit.LogError(res.PassID, userID, err)

	return res, err
}

// writeLog survives cancellation of ctx.
func (s *SyncService) writeLog(ctx context.Context, log zerolog.Logger, entry *models.SyncLogEntry) *models.SyncLogEntry {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
	defer cancel()

	written, err := s.logs.Append(ctx, entry)
	if err != nil {
		log.Error().Err(err).Str("status", string(entry.Status)).Msg("Failed to write sync log entry")
		return nil
	}
	return written
}

func drain(it mailbox.MessageIterator) ([]mailbox.MessageRef, error) {
	var refs []mailbox.MessageRef
	for {
		ref, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return refs, nil
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
}
