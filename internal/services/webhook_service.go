package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/audit"
	"github.com/ledgerly/backend/internal/gateway"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

type WebhookOutcome string

const (
	OutcomeApplied          WebhookOutcome = "applied"
	OutcomeRefreshed        WebhookOutcome = "refreshed"
	OutcomeDuplicate        WebhookOutcome = "duplicate"
	OutcomeRejected         WebhookOutcome = "rejected_transition"
	OutcomeUnsupported      WebhookOutcome = "unsupported_status"
	OutcomeUnknownOrder     WebhookOutcome = "unknown_order"
	OutcomeInvalidSignature WebhookOutcome = "invalid_signature"
	OutcomeMalformed        WebhookOutcome = "malformed"
)

const (
	notificationSchemaURL = "https://ledgerly.app/schemas/payment-notification.json"
	webhookLockTTL        = 30 * time.Second
)

const notificationSchema = `{
	"type": "object",
	"required": ["order_id", "transaction_status", "status_code", "gross_amount", "signature_key"],
	"properties": {
		"order_id": {"type": "string", "minLength": 1, "maxLength": 50},
		"transaction_status": {"type": "string", "minLength": 1},
		"status_code": {"type": "string", "pattern": "^[0-9]{3}$"},
		"gross_amount": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]{1,2})?$"},
		"signature_key": {"type": "string", "minLength": 1},
		"transaction_id": {"type": "string"},
		"payment_type": {"type": "string"},
		"fraud_status": {"type": "string"},
		"transaction_time": {"type": "string"}
	}
}`

// WebhookResult is reported back to the gateway. Status is the payment
// status after processing, when the order is known.
type WebhookResult struct {
	OrderID string               `json:"order_id,omitempty"`
	Outcome WebhookOutcome       `json:"outcome"`
	Status  models.PaymentStatus `json:"status,omitempty"`
}

// Ignored reports whether the notification caused no processing at all.
func (r *WebhookResult) Ignored() bool {
	switch r.Outcome {
	case OutcomeInvalidSignature, OutcomeMalformed, OutcomeUnsupported, OutcomeUnknownOrder:
		return true
	}
	return false
}

// WebhookService is the only writer of pending payment status and
// subscriptions.
type WebhookService struct {
	store   PaymentStore
	gateway gateway.Gateway
	locker  *Locker
	audit   *audit.Logger
	schema  *jsonschema.Schema
	log     zerolog.Logger
	now     func() time.Time
}

func NewWebhookService(store PaymentStore, gw gateway.Gateway, locker *Locker, auditLog *audit.Logger, log zerolog.Logger) (*WebhookService, error) {
	schema, err := compileNotificationSchema()
	if err != nil {
		return nil, err
	}
	return &WebhookService{
		store:   store,
		gateway: gw,
		locker:  locker,
		audit:   auditLog,
		schema:  schema,
		log:     logger.Component(log, "webhook"),
		now:     time.Now,
	}, nil
}

func compileNotificationSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(notificationSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(notificationSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(notificationSchemaURL)
}

// Handle processes one notification body. Only store failures return an
// error; every other condition is logged and reported as an outcome so the
// gateway stops retrying.
func (s *WebhookService) Handle(ctx context.Context, body []byte) (*WebhookResult, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		s.log.Warn().Err(err).Msg("Notification is not valid JSON")
		return &WebhookResult{Outcome: OutcomeMalformed}, nil
	}

	if err := s.schema.Validate(inst); err != nil {
		orderID := ""
		if obj, ok := inst.(map[string]any); ok {
			orderID, _ = obj["order_id"].(string)
		}
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("Notification failed schema validation")
		return &WebhookResult{OrderID: orderID, Outcome: OutcomeMalformed}, nil
	}

	var n models.PaymentNotification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Warn().Err(err).Msg("Notification does not decode")
		return &WebhookResult{Outcome: OutcomeMalformed}, nil
	}
	payload := models.Metadata{}
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.Warn().Err(err).Str("order_id", n.OrderID).Msg("Notification payload does not decode")
		return &WebhookResult{OrderID: n.OrderID, Outcome: OutcomeMalformed}, nil
	}
	delete(payload, "signature_key")

	log := s.log.With().Str("order_id", n.OrderID).Str("transaction_status", n.TransactionStatus).Logger()

	if !s.gateway.VerifySignature(&n) {
		log.Warn().Msg("Notification signature mismatch, ignoring")
		result := &WebhookResult{OrderID: n.OrderID, Outcome: OutcomeInvalidSignature}
		return result, s.journal(ctx, &n, false, result.Outcome, payload)
	}

	// Deliveries of the same order are serialized by the row lock in Reconcile.
	release, ok, err := s.locker.Acquire(ctx, "webhook:lock:"+n.OrderID, webhookLockTTL)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Webhook lock unavailable, relying on row lock")
	case !ok:
		log.Info().Msg("Order already being reconciled, waiting on row lock")
	}
	defer release()

	target := targetStatus(&n)
	result := &WebhookResult{OrderID: n.OrderID}

	previous, err := s.store.Reconcile(ctx, n.OrderID, func(current models.PendingPayment) (*Transition, error) {
		outcome, t := decideTransition(current, target, &n, s.now())
		result.Outcome = outcome
		result.Status = current.Status
		if t != nil {
			result.Status = t.Status
		}
		return t, nil
	})
	if errors.Is(err, ErrOrderNotFound) {
		log.Warn().Str("kind", string(apperr.KindReconciliationWarning)).Msg("Notification for unknown order")
		result.Outcome = OutcomeUnknownOrder
		return result, s.journal(ctx, &n, true, result.Outcome, payload)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to reconcile notification")
		s.audit.LogError(n.OrderID, "", err)
		return nil, err
	}

	if !amountsMatch(previous.GrossAmount, n.GrossAmount) {
		log.Warn().
			Str("kind", string(apperr.KindReconciliationWarning)).
			Str("stored_amount", previous.GrossAmount.StringFixed(2)).
			Str("reported_amount", n.GrossAmount).
			Msg("Gross amount differs from checkout")
	}

	switch result.Outcome {
	case OutcomeApplied:
		s.audit.LogReconciliation(n.OrderID, previous.UserID, string(previous.Status), string(result.Status))
		log.Info().Str("user_id", previous.UserID).Str("status", string(result.Status)).Msg("Payment status updated")
	case OutcomeRejected:
		log.Warn().
			Str("kind", string(apperr.KindReconciliationWarning)).
			Str("current_status", string(previous.Status)).
			Msg("Notification conflicts with final status, ignoring")
	case OutcomeUnsupported:
		log.Info().Msg("Notification status not handled, recorded only")
	default:
		log.Debug().Str("outcome", string(result.Outcome)).Msg("Notification processed")
	}

	return result, s.journal(ctx, &n, true, result.Outcome, payload)
}

func (s *WebhookService) journal(ctx context.Context, n *models.PaymentNotification, signatureValid bool, outcome WebhookOutcome, payload models.Metadata) error {
	return s.store.AppendNotification(ctx, &NotificationRecord{
		OrderID:        n.OrderID,
		Status:         n.TransactionStatus,
		SignatureValid: signatureValid,
		Outcome:        string(outcome),
		Payload:        payload,
	})
}

// targetStatus maps a gateway status onto a payment status. The empty status
// means the notification does not drive a transition.
func targetStatus(n *models.PaymentNotification) models.PaymentStatus {
	switch strings.ToLower(n.TransactionStatus) {
	case "settlement":
		return models.PaymentStatusSettlement
	case "capture":
		switch strings.ToLower(n.FraudStatus) {
		case "", "accept":
			return models.PaymentStatusSettlement
		case "deny":
			return models.PaymentStatusDeny
		default:
			return models.PaymentStatusPending
		}
	case "pending":
		return models.PaymentStatusPending
	case "expire":
		return models.PaymentStatusExpire
	case "cancel":
		return models.PaymentStatusCancel
	case "deny":
		return models.PaymentStatusDeny
	default:
		return ""
	}
}

// decideTransition is the payment state machine: pending moves to any
// terminal status once, and terminal statuses are final.
func decideTransition(current models.PendingPayment, target models.PaymentStatus, n *models.PaymentNotification, now time.Time) (WebhookOutcome, *Transition) {
	if target == "" {
		return OutcomeUnsupported, nil
	}

	if current.Status.Terminal() {
		if current.Status == target {
			return OutcomeDuplicate, nil
		}
		return OutcomeRejected, nil
	}

	t := &Transition{
		Status:               target,
		GatewayTransactionID: n.TransactionID,
		PaymentType:          n.PaymentType,
	}

	if target == models.PaymentStatusPending {
		if current.GatewayTransactionID == n.TransactionID && current.PaymentType == n.PaymentType {
			return OutcomeDuplicate, nil
		}
		return OutcomeRefreshed, t
	}

	if target == models.PaymentStatusSettlement {
		paidAt := now.UTC()
		t.PaidAt = &paidAt
	}
	return OutcomeApplied, t
}
