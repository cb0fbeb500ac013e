package services

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/mailbox"
	"github.com/ledgerly/backend/internal/models"
)

type memoryLedger struct {
	mu       sync.Mutex
	rows     map[string]models.TransactionCandidate
	failWith error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: map[string]models.TransactionCandidate{}}
}

func (l *memoryLedger) UpsertAll(ctx context.Context, userID string, candidates []*models.TransactionCandidate) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failWith != nil {
		return 0, l.failWith
	}
	n := 0
	for _, c := range dedupeByReference(userID, candidates) {
		if existing, ok := l.rows[c.Reference]; ok && existing.UserID != userID {
			continue
		}
		l.rows[c.Reference] = *c
		n++
	}
	return n, nil
}

type memorySyncLog struct {
	mu      sync.Mutex
	entries []models.SyncLogEntry
}

func (s *memorySyncLog) Append(ctx context.Context, entry *models.SyncLogEntry) (*models.SyncLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = int64(len(s.entries) + 1)
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, *entry)
	return entry, nil
}

func (s *memorySyncLog) ListRecent(ctx context.Context, userID string, limit int) ([]models.SyncLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.SyncLogEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].UserID == userID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func rawMessage(id, body string) *mailbox.RawMessage {
	return &mailbox.RawMessage{
		ID:         id,
		ReceivedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Headers: map[string]string{
			"From":    "KlikBCA <notifikasi@klikbca.com>",
			"Subject": "Transaction notification",
		},
		Body: &mailbox.Part{MimeType: "text/plain", Data: base64.URLEncoding.EncodeToString([]byte(body))},
	}
}

// memoryPaymentStore mirrors the SQL constraints that matter to the checkout
// and webhook paths: one pending payment per user, one subscription per user,
// serialized reconciliation per order.
type memoryPaymentStore struct {
	mu            sync.Mutex
	plans         map[string]models.Plan
	payments      map[string]*models.PendingPayment
	subscriptions map[string]models.Subscription
	notifications []NotificationRecord
	commitErr     error
}

func newMemoryPaymentStore(plans ...models.Plan) *memoryPaymentStore {
	s := &memoryPaymentStore{
		plans:         map[string]models.Plan{},
		payments:      map[string]*models.PendingPayment{},
		subscriptions: map[string]models.Subscription{},
	}
	for _, p := range plans {
		s.plans[p.Slug] = p
	}
	return s
}

func (s *memoryPaymentStore) FindPlan(ctx context.Context, slug string) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.plans[slug]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *memoryPaymentStore) ListPlanSlugs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var slugs []string
	for slug := range s.plans {
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

func (s *memoryPaymentStore) FindOpenCheckout(ctx context.Context, userID string) (*models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.UserID == userID && p.Status == models.PaymentStatusPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryPaymentStore) FindCheckout(ctx context.Context, userID, orderID string) (*models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[orderID]; ok && p.UserID == userID {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *memoryPaymentStore) CreatePending(ctx context.Context, p *models.PendingPayment, createAtGateway func(context.Context) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.UserID == p.UserID && existing.Status == models.PaymentStatusPending {
			return apperr.New(apperr.KindConflict, "memory.create_pending", "an open checkout already exists")
		}
	}

	url, err := createAtGateway(ctx)
	if err != nil {
		return err
	}
	if s.commitErr != nil {
		return apperr.Wrapf(apperr.KindInconsistency, "memory.create_pending", s.commitErr, "order %s was created at the payment gateway but could not be recorded", p.OrderID)
	}

	p.Status = models.PaymentStatusPending
	p.RedirectURL = url
	p.CreatedAt = time.Now()
	cp := *p
	s.payments[p.OrderID] = &cp
	return nil
}

func (s *memoryPaymentStore) Reconcile(ctx context.Context, orderID string, decide func(current models.PendingPayment) (*Transition, error)) (*models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.payments[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	before := *current

	t, err := decide(before)
	if err != nil || t == nil {
		return &before, err
	}

	current.Status = t.Status
	current.GatewayTransactionID = t.GatewayTransactionID
	current.PaymentType = t.PaymentType
	if t.PaidAt != nil {
		current.PaidAt = t.PaidAt
	}
	if t.Status == models.PaymentStatusSettlement {
		s.subscriptions[current.UserID] = models.Subscription{
			UserID:    current.UserID,
			PlanID:    current.PlanID,
			OrderID:   orderID,
			IsActive:  true,
			StartedAt: *t.PaidAt,
		}
	}
	return &before, nil
}

func (s *memoryPaymentStore) AppendNotification(ctx context.Context, rec *NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *rec)
	return nil
}
