package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/audit"
	"github.com/ledgerly/backend/internal/config"
	"github.com/ledgerly/backend/internal/gateway"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var premiumPlan = models.Plan{
	ID:    "plan-premium",
	Slug:  "premium",
	Name:  "Premium",
	Price: decimal.NewFromInt(49000),
}

func newCheckoutFixture(store PaymentStore, gw gateway.Gateway) *CheckoutService {
	return NewCheckoutService(store, gw, audit.NewLogger(zerolog.Nop()), config.GatewayConfig{
		OrderPrefix: "SUB-",
		CheckoutTTL: time.Hour,
	}, zerolog.Nop())
}

func premiumRequest() CheckoutRequest {
	return CheckoutRequest{
		PlanSlug: "premium",
		Email:    "owner@example.com",
		Amount:   decimal.NewFromInt(49000),
	}
}

func TestCheckoutService_InitiateCheckout(t *testing.T) {
	store := newMemoryPaymentStore(premiumPlan)
	gw := &MockGateway{}
	gw.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(req gateway.TransactionRequest) bool {
		return strings.HasPrefix(req.OrderID, "SUB-") &&
			req.GrossAmount.Equal(premiumPlan.Price) &&
			len(req.Items) == 1 && req.Items[0].Name == "Premium"
	})).Return(&gateway.TransactionResponse{Token: "tok", RedirectURL: "https://pay.example.com/tok"}, nil).Once()

	svc := newCheckoutFixture(store, gw)

	result, err := svc.InitiateCheckout(context.Background(), "user-1", premiumRequest())
	require.NoError(t, err)
	assert.False(t, result.Existing)
	assert.Equal(t, models.PaymentStatusPending, result.Status)
	assert.Equal(t, "https://pay.example.com/tok", result.RedirectURL)
	assert.Len(t, result.OrderID, len("SUB-")+orderSuffixLen)

	open, err := svc.OpenCheckout(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, result.OrderID, open.OrderID)
	gw.AssertExpectations(t)
}

func TestCheckoutService_ReturnsOpenCheckout(t *testing.T) {
	store := newMemoryPaymentStore(premiumPlan)
	gw := &MockGateway{}
	gw.On("CreateTransaction", mock.Anything, mock.Anything).
		Return(&gateway.TransactionResponse{RedirectURL: "https://pay.example.com/first"}, nil).Once()

	svc := newCheckoutFixture(store, gw)

	first, err := svc.InitiateCheckout(context.Background(), "user-1", premiumRequest())
	require.NoError(t, err)

	second, err := svc.InitiateCheckout(context.Background(), "user-1", premiumRequest())
	require.NoError(t, err)
	assert.True(t, second.Existing)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, store.payments, 1)
	gw.AssertNumberOfCalls(t, "CreateTransaction", 1)
}

func TestCheckoutService_StaleOpenCheckout(t *testing.T) {
	store := newMemoryPaymentStore(premiumPlan)
	store.payments["SUB-old"] = &models.PendingPayment{
		OrderID:     "SUB-old",
		UserID:      "user-1",
		PlanID:      premiumPlan.ID,
		GrossAmount: premiumPlan.Price,
		Status:      models.PaymentStatusPending,
		CreatedAt:   time.Now().Add(-2 * time.Hour),
	}
	gw := &MockGateway{}
	svc := newCheckoutFixture(store, gw)

	_, err := svc.InitiateCheckout(context.Background(), "user-1", premiumRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "SUB-old")
	gw.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
}

func TestCheckoutService_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CheckoutRequest
		message string
	}{
		{
			name:    "unknown plan with hint",
			req:     CheckoutRequest{PlanSlug: "premum", Email: "a@b.co", Amount: decimal.NewFromInt(49000)},
			message: `plan "premum" not found; did you mean "premium"?`,
		},
		{
			name:    "unknown plan without hint",
			req:     CheckoutRequest{PlanSlug: "enterprise-gold", Email: "a@b.co", Amount: decimal.NewFromInt(49000)},
			message: `plan "enterprise-gold" not found`,
		},
		{
			name:    "zero amount",
			req:     CheckoutRequest{PlanSlug: "premium", Email: "a@b.co", Amount: decimal.Zero},
			message: "amount must be greater than zero",
		},
		{
			name:    "amount differs from price",
			req:     CheckoutRequest{PlanSlug: "premium", Email: "a@b.co", Amount: decimal.NewFromInt(10000)},
			message: "amount 10000 does not match the price of plan premium",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &MockGateway{}
			svc := newCheckoutFixture(newMemoryPaymentStore(premiumPlan), gw)

			_, err := svc.InitiateCheckout(context.Background(), "user-1", tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.message, apperr.Message(err))
			gw.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutService_GatewayFailureLeavesNoPayment(t *testing.T) {
	store := newMemoryPaymentStore(premiumPlan)
	gw := &MockGateway{}
	gw.On("CreateTransaction", mock.Anything, mock.Anything).
		Return(nil, apperr.New(apperr.KindProvider, "gateway.create", "payment gateway unavailable")).Once()

	svc := newCheckoutFixture(store, gw)

	_, err := svc.InitiateCheckout(context.Background(), "user-1", premiumRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.KindProvider, apperr.KindOf(err))
	assert.Empty(t, store.payments)

	_, err = svc.OpenCheckout(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

// conflictOnceStore reports the unique-violation a concurrent checkout causes,
// for a competitor whose transaction then rolled back.
type conflictOnceStore struct {
	*memoryPaymentStore
	conflicts int
}

func (s *conflictOnceStore) CreatePending(ctx context.Context, p *models.PendingPayment, createAtGateway func(context.Context) (string, error)) error {
	if s.conflicts == 0 {
		s.conflicts++
		return apperr.New(apperr.KindConflict, "payments.create_pending", "an open checkout already exists")
	}
	return s.memoryPaymentStore.CreatePending(ctx, p, createAtGateway)
}

func TestCheckoutService_RetriesAfterRolledBackCompetitor(t *testing.T) {
	store := &conflictOnceStore{memoryPaymentStore: newMemoryPaymentStore(premiumPlan)}
	gw := &MockGateway{}
	gw.On("CreateTransaction", mock.Anything, mock.Anything).
		Return(&gateway.TransactionResponse{RedirectURL: "https://pay.example.com/r"}, nil).Once()

	svc := newCheckoutFixture(store, gw)

	result, err := svc.InitiateCheckout(context.Background(), "user-1", premiumRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, store.conflicts)
	assert.False(t, result.Existing)
	assert.Equal(t, "https://pay.example.com/r", result.RedirectURL)
	assert.Len(t, store.payments, 1)
	gw.AssertExpectations(t)
}

func TestCheckoutService_UnrecordedGatewayOrder(t *testing.T) {
	store := newMemoryPaymentStore(premiumPlan)
	store.commitErr = errors.New("connection reset")
	gw := &MockGateway{}
	gw.On("CreateTransaction", mock.Anything, mock.Anything).
		Return(&gateway.TransactionResponse{RedirectURL: "https://pay.example.com/x"}, nil).Once()

	svc := newCheckoutFixture(store, gw)

	_, err := svc.InitiateCheckout(context.Background(), "user-1", premiumRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.KindInconsistency, apperr.KindOf(err))
	assert.Empty(t, store.payments)
}

func TestCheckoutService_PlanNameOverride(t *testing.T) {
	gw := &MockGateway{}
	gw.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(req gateway.TransactionRequest) bool {
		return req.Items[0].Name == "Premium (annual promo)"
	})).Return(&gateway.TransactionResponse{RedirectURL: "https://pay.example.com/y"}, nil).Once()

	svc := newCheckoutFixture(newMemoryPaymentStore(premiumPlan), gw)

	req := premiumRequest()
	req.PlanName = "Premium (annual promo)"
	req.PlanSlug = "  PREMIUM "
	_, err := svc.InitiateCheckout(context.Background(), "user-1", req)
	require.NoError(t, err)
	gw.AssertExpectations(t)
}

func TestClosestSlug(t *testing.T) {
	known := []string{"basic", "premium", "family"}
	assert.Equal(t, "basic", closestSlug("basc", known))
	assert.Equal(t, "family", closestSlug("famly", known))
	assert.Equal(t, "", closestSlug("unlimited-business", known))
	assert.Equal(t, "", closestSlug("x", nil))
}
