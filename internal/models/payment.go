package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSettlement PaymentStatus = "settlement"
	PaymentStatusExpire     PaymentStatus = "expire"
	PaymentStatusCancel     PaymentStatus = "cancel"
	PaymentStatusDeny       PaymentStatus = "deny"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSettlement, PaymentStatusExpire, PaymentStatusCancel, PaymentStatusDeny:
		return true
	}
	return false
}

type Plan struct {
	ID    string          `json:"id" db:"id"`
	Slug  string          `json:"slug" db:"slug"`
	Name  string          `json:"name" db:"name"`
	Price decimal.Decimal `json:"price" db:"price"`
}

type PendingPayment struct {
	OrderID              string          `json:"order_id" db:"order_id"`
	UserID               string          `json:"user_id" db:"user_id"`
	PlanID               string          `json:"plan_id" db:"plan_id"`
	GrossAmount          decimal.Decimal `json:"gross_amount" db:"gross_amount"`
	Status               PaymentStatus   `json:"status" db:"status"`
	RedirectURL          string          `json:"redirect_url" db:"redirect_url"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`
	PaymentType          string          `json:"payment_type,omitempty" db:"payment_type"`
	PaidAt               *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// Subscription is unique per user; a settlement overwrites it.
type Subscription struct {
	UserID    string    `json:"user_id" db:"user_id"`
	PlanID    string    `json:"plan_id" db:"plan_id"`
	OrderID   string    `json:"order_id" db:"order_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	StartedAt time.Time `json:"started_at" db:"started_at"`
}

// PaymentNotification is the gateway's asynchronous status callback.
type PaymentNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	GrossAmount       string `json:"gross_amount"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	TransactionTime   string `json:"transaction_time,omitempty"`
}
