package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

var ErrOrderNotFound = errors.New("order not found")

// Transition is a decided change to one pending payment. A settlement also
// activates the user's subscription.
type Transition struct {
	Status               models.PaymentStatus
	GatewayTransactionID string
	PaymentType          string
	PaidAt               *time.Time
}

// NotificationRecord is one row of the append-only notification journal.
type NotificationRecord struct {
	OrderID        string
	Status         string
	SignatureValid bool
	Outcome        string
	Payload        models.Metadata
}

type PaymentStore interface {
	FindPlan(ctx context.Context, slug string) (*models.Plan, error)
	ListPlanSlugs(ctx context.Context) ([]string, error)
	FindOpenCheckout(ctx context.Context, userID string) (*models.PendingPayment, error)
	FindCheckout(ctx context.Context, userID, orderID string) (*models.PendingPayment, error)
	// CreatePending inserts p and calls createAtGateway inside one database
	// transaction; the row is committed only with the returned redirect URL.
	CreatePending(ctx context.Context, p *models.PendingPayment, createAtGateway func(context.Context) (string, error)) error
	// Reconcile locks the order row, asks decide for a transition and applies
	// it. A nil transition leaves the row untouched. Returns the row as it was
	// before the change, or ErrOrderNotFound.
	Reconcile(ctx context.Context, orderID string, decide func(current models.PendingPayment) (*Transition, error)) (*models.PendingPayment, error)
	AppendNotification(ctx context.Context, rec *NotificationRecord) error
}

type PostgresPaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PostgresPaymentStore {
	return &PostgresPaymentStore{db: db}
}

// FindPlan returns nil, nil when slug is unknown.
func (s *PostgresPaymentStore) FindPlan(ctx context.Context, slug string) (*models.Plan, error) {
	var p models.Plan
	err := s.db.QueryRowContext(ctx, `SELECT id, slug, name, price FROM plans WHERE slug = $1`, slug).
		Scan(&p.ID, &p.Slug, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "payments.find_plan", err)
	}
	return &p, nil
}

func (s *PostgresPaymentStore) ListPlanSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM plans ORDER BY slug`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "payments.list_plans", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "payments.list_plans", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

const pendingColumns = `order_id, user_id, plan_id, gross_amount, status, redirect_url,
	gateway_transaction_id, payment_type, paid_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (*models.PendingPayment, error) {
	var (
		p      models.PendingPayment
		paidAt sql.NullTime
	)
	err := row.Scan(&p.OrderID, &p.UserID, &p.PlanID, &p.GrossAmount, &p.Status, &p.RedirectURL,
		&p.GatewayTransactionID, &p.PaymentType, &paidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return &p, nil
}

// FindOpenCheckout returns nil, nil when the user has no pending payment.
func (s *PostgresPaymentStore) FindOpenCheckout(ctx context.Context, userID string) (*models.PendingPayment, error) {
	p, err := scanPending(s.db.QueryRowContext(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_payments
		WHERE user_id = $1 AND status = 'pending'`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "payments.find_open", err)
	}
	return p, nil
}

// FindCheckout returns nil, nil when the order does not exist for userID.
func (s *PostgresPaymentStore) FindCheckout(ctx context.Context, userID, orderID string) (*models.PendingPayment, error) {
	p, err := scanPending(s.db.QueryRowContext(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_payments
		WHERE order_id = $1 AND user_id = $2`, orderID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "payments.find", err)
	}
	return p, nil
}

func (s *PostgresPaymentStore) CreatePending(ctx context.Context, p *models.PendingPayment, createAtGateway func(context.Context) (string, error)) error {
	const op = "payments.create_pending"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, op, err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO pending_payments (order_id, user_id, plan_id, gross_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', NOW(), NOW())
		RETURNING created_at, updated_at`,
		p.OrderID, p.UserID, p.PlanID, p.GrossAmount.StringFixed(2)).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperr.Wrapf(apperr.KindConflict, op, err, "an open checkout already exists")
		}
		return apperr.Wrap(apperr.KindStore, op, err)
	}

	redirectURL, err := createAtGateway(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pending_payments SET redirect_url = $1 WHERE order_id = $2`,
		redirectURL, p.OrderID); err != nil {
		return apperr.Wrapf(apperr.KindInconsistency, op, err,
			"order %s was created at the payment gateway but could not be recorded", p.OrderID)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrapf(apperr.KindInconsistency, op, err,
			"order %s was created at the payment gateway but could not be recorded", p.OrderID)
	}

	p.Status = models.PaymentStatusPending
	p.RedirectURL = redirectURL
	return nil
}

func (s *PostgresPaymentStore) Reconcile(ctx context.Context, orderID string, decide func(current models.PendingPayment) (*Transition, error)) (*models.PendingPayment, error) {
	const op = "payments.reconcile"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, op, err)
	}
	defer tx.Rollback()

	current, err := scanPending(tx.QueryRowContext(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_payments
		WHERE order_id = $1
		FOR UPDATE`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, op, err)
	}

	t, err := decide(*current)
	if err != nil {
		return current, err
	}
	if t == nil {
		return current, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pending_payments
		SET status = $1, gateway_transaction_id = $2, payment_type = $3,
			paid_at = COALESCE($4, paid_at), updated_at = NOW()
		WHERE order_id = $5`,
		string(t.Status), t.GatewayTransactionID, t.PaymentType, nullTime(t.PaidAt), orderID); err != nil {
		return current, apperr.Wrap(apperr.KindStore, op, err)
	}

	if t.Status == models.PaymentStatusSettlement {
		startedAt := time.Now()
		if t.PaidAt != nil {
			startedAt = *t.PaidAt
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (user_id, plan_id, order_id, is_active, started_at)
			VALUES ($1, $2, $3, TRUE, $4)
			ON CONFLICT (user_id) DO UPDATE SET
				plan_id = EXCLUDED.plan_id,
				order_id = EXCLUDED.order_id,
				is_active = TRUE,
				started_at = EXCLUDED.started_at`,
			current.UserID, current.PlanID, orderID, startedAt); err != nil {
			return current, apperr.Wrap(apperr.KindStore, op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return current, apperr.Wrap(apperr.KindStore, op, err)
	}
	return current, nil
}

func (s *PostgresPaymentStore) AppendNotification(ctx context.Context, rec *NotificationRecord) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_notifications (order_id, status, signature_valid, outcome, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		rec.OrderID, rec.Status, rec.SignatureValid, rec.Outcome, rec.Payload); err != nil {
		return apperr.Wrap(apperr.KindStore, "payments.append_notification", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// amountsMatch compares a gateway amount string with the stored amount.
func amountsMatch(stored decimal.Decimal, reported string) bool {
	d, err := decimal.NewFromString(reported)
	return err == nil && d.Equal(stored)
}
