package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/audit"
	"github.com/ledgerly/backend/internal/config"
	"github.com/ledgerly/backend/internal/gateway"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	orderSuffixLen  = 16
	maxSlugDistance = 3
)

var ErrCheckoutNotFound = errors.New("checkout not found")

type CheckoutRequest struct {
	PlanSlug string          `json:"plan_slug" validate:"required,max=64"`
	Email    string          `json:"email" validate:"required,email"`
	PlanName string          `json:"plan_name,omitempty" validate:"omitempty,max=100"`
	Amount   decimal.Decimal `json:"amount" swaggertype:"number"`
}

type CheckoutResult struct {
	OrderID     string               `json:"order_id"`
	RedirectURL string               `json:"redirect_url"`
	Status      models.PaymentStatus `json:"status"`
	GrossAmount decimal.Decimal      `json:"gross_amount" swaggertype:"number"`
	Existing    bool                 `json:"existing"`
	CreatedAt   time.Time            `json:"created_at"`
}

// CheckoutService is the only creator of pending payments.
type CheckoutService struct {
	store   PaymentStore
	gateway gateway.Gateway
	audit   *audit.Logger
	prefix  string
	ttl     time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

func NewCheckoutService(store PaymentStore, gw gateway.Gateway, auditLog *audit.Logger, cfg config.GatewayConfig, log zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		store:   store,
		gateway: gw,
		audit:   auditLog,
		prefix:  cfg.OrderPrefix,
		ttl:     cfg.CheckoutTTL,
		log:     logger.Component(log, "checkout"),
		now:     time.Now,
	}
}

// InitiateCheckout returns the user's open checkout when one is still fresh,
// and otherwise creates a new one at the gateway.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	const op = "checkout.initiate"

	slug := strings.ToLower(strings.TrimSpace(req.PlanSlug))
	plan, err := s.store.FindPlan(ctx, slug)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, apperr.New(apperr.KindValidation, op, s.planNotFoundMessage(ctx, slug))
	}

	if !req.Amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, op, "amount must be greater than zero")
	}
	if !req.Amount.Equal(plan.Price) {
		return nil, apperr.New(apperr.KindValidation, op,
			fmt.Sprintf("amount %s does not match the price of plan %s", req.Amount, plan.Slug))
	}

	open, err := s.store.FindOpenCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return s.existing(open)
	}

	payment := &models.PendingPayment{
		OrderID:     s.newOrderID(),
		UserID:      userID,
		PlanID:      plan.ID,
		GrossAmount: plan.Price,
		Status:      models.PaymentStatusPending,
	}

	itemName := plan.Name
	if name := strings.TrimSpace(req.PlanName); name != "" {
		itemName = name
	}

	createAtGateway := func(ctx context.Context) (string, error) {
		resp, err := s.gateway.CreateTransaction(ctx, gateway.TransactionRequest{
			OrderID:     payment.OrderID,
			GrossAmount: payment.GrossAmount,
			Email:       req.Email,
			Items: []gateway.Item{{
				ID:       plan.ID,
				Name:     itemName,
				Price:    plan.Price,
				Quantity: 1,
			}},
		})
		if err != nil {
			return "", err
		}
		return resp.RedirectURL, nil
	}

	for attempt := 1; ; attempt++ {
		err = s.store.CreatePending(ctx, payment, createAtGateway)
		if !apperr.Is(err, apperr.KindConflict) || attempt == 2 {
			break
		}
		// lost a race with a concurrent checkout for the same user
		open, ferr := s.store.FindOpenCheckout(ctx, userID)
		if ferr != nil {
			return nil, ferr
		}
		if open != nil {
			return s.existing(open)
		}
		s.log.Debug().Str("user_id", userID).Msg("Competing checkout rolled back, retrying")
	}
	if err != nil {
		if apperr.Is(err, apperr.KindInconsistency) {
			s.log.Error().Err(err).Str("order_id", payment.OrderID).Str("user_id", userID).Msg("Gateway order not recorded")
			s.audit.LogError(payment.OrderID, userID, err)
		} else {
			s.log.Warn().Err(err).Str("order_id", payment.OrderID).Msg("Checkout failed")
		}
		return nil, err
	}

	s.audit.LogCheckout(payment.OrderID, userID, plan.ID, payment.GrossAmount.StringFixed(2))
	s.log.Info().Str("order_id", payment.OrderID).Str("user_id", userID).Str("plan", plan.Slug).Msg("Checkout created")

	return &CheckoutResult{
		OrderID:     payment.OrderID,
		RedirectURL: payment.RedirectURL,
		Status:      payment.Status,
		GrossAmount: payment.GrossAmount,
		CreatedAt:   payment.CreatedAt,
	}, nil
}

// OpenCheckout returns the user's pending payment or ErrCheckoutNotFound.
func (s *CheckoutService) OpenCheckout(ctx context.Context, userID string) (*models.PendingPayment, error) {
	open, err := s.store.FindOpenCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrCheckoutNotFound
	}
	return open, nil
}

func (s *CheckoutService) existing(open *models.PendingPayment) (*CheckoutResult, error) {
	if s.ttl > 0 && s.now().Sub(open.CreatedAt) > s.ttl {
		return nil, apperr.New(apperr.KindConflict, "checkout.initiate",
			fmt.Sprintf("checkout %s is still awaiting its final status from the payment gateway", open.OrderID))
	}
	return &CheckoutResult{
		OrderID:     open.OrderID,
		RedirectURL: open.RedirectURL,
		Status:      open.Status,
		GrossAmount: open.GrossAmount,
		Existing:    true,
		CreatedAt:   open.CreatedAt,
	}, nil
}

func (s *CheckoutService) newOrderID() string {
	return s.prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:orderSuffixLen]
}

func (s *CheckoutService) planNotFoundMessage(ctx context.Context, slug string) string {
	msg := fmt.Sprintf("plan %q not found", slug)

	slugs, err := s.store.ListPlanSlugs(ctx)
	if err != nil {
		return msg
	}
	if hint := closestSlug(slug, slugs); hint != "" {
		msg += fmt.Sprintf("; did you mean %q?", hint)
	}
	return msg
}

func closestSlug(slug string, known []string) string {
	best, bestDist := "", maxSlugDistance+1
	for _, k := range known {
		if d := levenshtein.ComputeDistance(slug, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}
