package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionCandidate_SignConsistent(t *testing.T) {
	expense := TransactionCandidate{Direction: DirectionExpense, Amount: decimal.NewFromInt(-150000)}
	income := TransactionCandidate{Direction: DirectionIncome, Amount: decimal.NewFromInt(2500)}
	wrong := TransactionCandidate{Direction: DirectionIncome, Amount: decimal.NewFromInt(-1)}

	assert.True(t, expense.SignConsistent())
	assert.True(t, income.SignConsistent())
	assert.False(t, wrong.SignConsistent())
	assert.False(t, (&TransactionCandidate{Amount: decimal.NewFromInt(1)}).SignConsistent())
}

func TestPaymentStatus_Terminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.Terminal())
	for _, s := range []PaymentStatus{PaymentStatusSettlement, PaymentStatusExpire, PaymentStatusCancel, PaymentStatusDeny} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestMetadata_ValueScan(t *testing.T) {
	m := Metadata{"order_id": "SUB-1"}
	v, err := m.Value()
	assert.NoError(t, err)

	var out Metadata
	assert.NoError(t, out.Scan(v))
	assert.Equal(t, "SUB-1", out["order_id"])

	assert.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}
