package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
)

const (
	ledgerBatchSize = 100
	ledgerColumns   = 14
)

// TransactionUpserter writes extracted candidates idempotently.
type TransactionUpserter interface {
	UpsertAll(ctx context.Context, userID string, candidates []*models.TransactionCandidate) (int, error)
}

// LedgerService upserts candidates keyed on reference. A row that already
// belongs to another user is never overwritten.
type LedgerService struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewLedgerService(db *sql.DB, log zerolog.Logger) *LedgerService {
	return &LedgerService{db: db, log: logger.Component(log, "ledger")}
}

// UpsertAll returns the number of rows written. Batches are written with a
// single multi-row statement; a failed batch is retried row by row so one bad
// row cannot drop its neighbours. The error is non-nil when any row was lost.
func (s *LedgerService) UpsertAll(ctx context.Context, userID string, candidates []*models.TransactionCandidate) (int, error) {
	const op = "ledger.upsert_all"

	rows := dedupeByReference(userID, candidates)
	persisted, failed := 0, 0
	var lastErr error

	for start := 0; start < len(rows); start += ledgerBatchSize {
		batch := rows[start:min(start+ledgerBatchSize, len(rows))]

		n, err := s.upsertBatch(ctx, batch)
		if err == nil {
			persisted += n
			continue
		}
		if ctx.Err() != nil {
			return persisted, apperr.Wrap(apperr.KindStore, op, ctx.Err())
		}

		s.log.Warn().Err(err).Int("batch_size", len(batch)).Msg("Batch upsert failed, retrying per row")
		for _, c := range batch {
			n, err := s.upsertBatch(ctx, []*models.TransactionCandidate{c})
			if err != nil {
				failed++
				lastErr = err
				s.log.Error().Err(err).Str("reference", c.Reference).Msg("Failed to upsert transaction")
				continue
			}
			persisted += n
		}
	}

	if failed > 0 {
		return persisted, apperr.Wrapf(apperr.KindStore, op, lastErr, "%d of %d transactions could not be stored", failed, len(rows))
	}
	return persisted, nil
}

func (s *LedgerService) upsertBatch(ctx context.Context, batch []*models.TransactionCandidate) (int, error) {
	placeholders := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*ledgerColumns)

	for i, c := range batch {
		base := i * ledgerColumns
		ph := make([]string, ledgerColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
		args = append(args,
			c.Reference, c.UserID, c.AccountID, c.Date, c.Description,
			c.Amount, c.Currency, c.Provider, string(c.Direction),
			c.AccountFrom, c.AccountTo, c.Fee, c.TotalAmount, c.SourcePayload,
		)
	}

	query := `
		INSERT INTO transactions (reference, user_id, account_id, date, description,
			amount, currency, provider, direction, account_from, account_to, fee, total_amount, source_payload)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (reference) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			date = EXCLUDED.date,
			description = EXCLUDED.description,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			provider = EXCLUDED.provider,
			direction = EXCLUDED.direction,
			account_from = EXCLUDED.account_from,
			account_to = EXCLUDED.account_to,
			fee = EXCLUDED.fee,
			total_amount = EXCLUDED.total_amount,
			source_payload = EXCLUDED.source_payload,
			updated_at = NOW()
		WHERE transactions.user_id = EXCLUDED.user_id`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if int(rowsAffected) < len(batch) {
		s.log.Warn().
			Int("batch_size", len(batch)).
			Int64("written", rowsAffected).
			Msg("Some references belong to another user and were left untouched")
	}
	return int(rowsAffected), nil
}

// dedupeByReference keeps the last candidate per reference, in first-seen
// order, and drops sign-inconsistent rows. A multi-row upsert must not touch
// the same key twice.
func dedupeByReference(userID string, candidates []*models.TransactionCandidate) []*models.TransactionCandidate {
	index := make(map[string]int, len(candidates))
	out := make([]*models.TransactionCandidate, 0, len(candidates))

	for _, c := range candidates {
		if c == nil || c.Reference == "" || !c.SignConsistent() {
			continue
		}
		c.UserID = userID
		if i, seen := index[c.Reference]; seen {
			out[i] = c
			continue
		}
		index[c.Reference] = len(out)
		out = append(out, c)
	}
	return out
}

// ListRecent returns the user's ledger rows, newest transaction date first.
func (s *LedgerService) ListRecent(ctx context.Context, userID string, limit int) ([]models.TransactionCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reference, user_id, account_id, date, description, amount, currency, provider,
			direction, account_from, account_to, fee, total_amount, source_payload
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, reference
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "ledger.list_recent", err)
	}
	defer rows.Close()

	transactions := []models.TransactionCandidate{}
	for rows.Next() {
		var tx models.TransactionCandidate
		if err := rows.Scan(&tx.Reference, &tx.UserID, &tx.AccountID, &tx.Date, &tx.Description,
			&tx.Amount, &tx.Currency, &tx.Provider, &tx.Direction, &tx.AccountFrom, &tx.AccountTo,
			&tx.Fee, &tx.TotalAmount, &tx.SourcePayload); err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "ledger.list_recent", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "ledger.list_recent", err)
	}

	return transactions, nil
}
