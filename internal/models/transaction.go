package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// TransactionCandidate is a ledger row derived from one mailbox message.
// Amount is signed: negative for expense, positive for income.
type TransactionCandidate struct {
	Reference     string          `json:"reference" db:"reference"`
	UserID        string          `json:"user_id" db:"user_id"`
	AccountID     string          `json:"account_id" db:"account_id"`
	Date          time.Time       `json:"date" db:"date"`
	Description   string          `json:"description" db:"description"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Provider      string          `json:"provider" db:"provider"`
	Direction     Direction       `json:"direction" db:"direction"`
	AccountFrom   string          `json:"account_from" db:"account_from"`
	AccountTo     string          `json:"account_to" db:"account_to"`
	Fee           decimal.Decimal `json:"fee" db:"fee"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	SourcePayload string          `json:"source_payload" db:"source_payload"`
}

// SignConsistent reports whether the amount sign agrees with the direction.
func (t *TransactionCandidate) SignConsistent() bool {
	switch t.Direction {
	case DirectionExpense:
		return t.Amount.IsNegative()
	case DirectionIncome:
		return t.Amount.IsPositive()
	default:
		return false
	}
}
