package extractor

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/mailbox"
	"github.com/ledgerly/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	received = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	src      = Source{UserID: "user-1", AccountID: "cred-1", MailboxAddress: "owner@example.com"}
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func plainMessage(id, body string) *mailbox.RawMessage {
	return &mailbox.RawMessage{
		ID:         id,
		ReceivedAt: received,
		Headers: map[string]string{
			"From":    "KlikBCA <notifikasi@klikbca.com>",
			"Subject": "Transaction notification",
		},
		Body: &mailbox.Part{MimeType: "text/plain", Data: encode(body)},
	}
}

func TestExtract_AmountAndDirection(t *testing.T) {
	t.Run("rupiah debit is an expense", func(t *testing.T) {
		c, err := Extract(plainMessage("m1", "Rp 150,000 debit for purchase"), src)
		require.NoError(t, err)

		assert.True(t, c.Amount.Equal(decimal.NewFromInt(-150000)), c.Amount.String())
		assert.Equal(t, models.DirectionExpense, c.Direction)
		assert.True(t, c.TotalAmount.Equal(c.Amount))
		assert.True(t, c.Fee.IsZero())
		assert.Equal(t, "IDR", c.Currency)
		assert.Equal(t, "owner@example.com", c.AccountFrom)
		assert.Equal(t, "klikbca.com", c.AccountTo)
		assert.True(t, c.SignConsistent())
	})

	t.Run("credit without expense keywords is income", func(t *testing.T) {
		c, err := Extract(plainMessage("m2", "IDR 2,500.00 credited"), src)
		require.NoError(t, err)

		assert.True(t, c.Amount.Equal(decimal.NewFromInt(2500)), c.Amount.String())
		assert.Equal(t, models.DirectionIncome, c.Direction)
		assert.Equal(t, "klikbca.com", c.AccountFrom)
		assert.Equal(t, "owner@example.com", c.AccountTo)
		assert.True(t, c.SignConsistent())
	})

	t.Run("dollar amounts", func(t *testing.T) {
		c, err := Extract(plainMessage("m3", "Your PAYMENT of $12.5 was received"), src)
		require.NoError(t, err)

		assert.Equal(t, "USD", c.Currency)
		assert.True(t, c.Amount.Equal(decimal.RequireFromString("-12.5")))
	})
}

func TestExtract_Reference(t *testing.T) {
	first, err := Extract(plainMessage("18c2f", "Rp 10.000 transfer masuk"), src)
	require.NoError(t, err)

	again := plainMessage("18c2f", "Rp 10.000 transfer masuk")
	again.ReceivedAt = received.Add(time.Hour)
	second, err := Extract(again, src)
	require.NoError(t, err)

	assert.Equal(t, "EMAIL-18c2f", first.Reference)
	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, "user-1", first.UserID)
	assert.Equal(t, "cred-1", first.AccountID)
}

func TestExtract_Skips(t *testing.T) {
	tests := []struct {
		name string
		msg  *mailbox.RawMessage
	}{
		{"no currency pattern", plainMessage("m1", "Your statement is ready")},
		{"zero amount", plainMessage("m2", "Rp 0 debit")},
		{"bad grouping", plainMessage("m3", "Rp 1,50,000 debit")},
		{"mixed decimal and grouping", plainMessage("m4", "Rp 1,000,50 debit")},
		{"html only", &mailbox.RawMessage{ID: "m5", ReceivedAt: received, Body: &mailbox.Part{MimeType: "text/html", Data: encode("<b>Rp 5.000</b>")}}},
		{"undecodable body", &mailbox.RawMessage{ID: "m6", ReceivedAt: received, Body: &mailbox.Part{MimeType: "text/plain", Data: "!!!"}}},
		{"no body", &mailbox.RawMessage{ID: "m7", ReceivedAt: received}},
		{"no date", func() *mailbox.RawMessage {
			m := plainMessage("m8", "Rp 5.000 debit")
			m.ReceivedAt = time.Time{}
			return m
		}()},
		{"no id", plainMessage("", "Rp 5.000 debit")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Extract(tt.msg, src)
			assert.Nil(t, c)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindExtractionSkip))
		})
	}
}

func TestExtract_Multipart(t *testing.T) {
	msg := &mailbox.RawMessage{
		ID: "m1",
		Headers: map[string]string{
			"Date": "Fri, 01 Mar 2024 15:30:00 +0700",
		},
		Body: &mailbox.Part{
			MimeType: "multipart/mixed",
			Parts: []*mailbox.Part{
				{MimeType: "multipart/alternative", Parts: []*mailbox.Part{
					{MimeType: "text/html", Data: encode("<p>Rp 1</p>")},
					{MimeType: "text/plain; charset=UTF-8", Data: strings.TrimRight(encode("\nPembayaran QRIS\nRp 45.500 payment"), "=")},
				}},
				{MimeType: "application/pdf", Data: encode("%PDF")},
			},
		},
	}

	c, err := Extract(msg, src)
	require.NoError(t, err)

	assert.True(t, c.Amount.Equal(decimal.NewFromInt(-45500)), c.Amount.String())
	assert.Equal(t, received, c.Date)
	assert.Equal(t, "Pembayaran QRIS", c.Description)
	assert.Equal(t, FallbackProvider, c.Provider)
}

func TestExtract_PayloadTruncated(t *testing.T) {
	body := "Rp 5.000 credited " + strings.Repeat("x", 800)
	c, err := Extract(plainMessage("m1", body), src)
	require.NoError(t, err)

	assert.Len(t, []rune(c.SourcePayload), MaxPayloadRunes)
	assert.True(t, strings.HasPrefix(body, c.SourcePayload))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"150,000", "150000"},
		{"150.000", "150000"},
		{"2,500.00", "2500"},
		{"150.000,50", "150000.5"},
		{"1,234,567", "1234567"},
		{"12.5", "12.5"},
		{"99", "99"},
		{"1000000", "1000000"},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s => %s", tt.in, got)
	}

	for _, bad := range []string{"1,50,000", "1.000,000.00", "1,000.000,00", "1234,567"} {
		_, err := parseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestProviderFrom(t *testing.T) {
	assert.Equal(t, "klikbca.com", providerFrom("KlikBCA <notifikasi@KlikBCA.com>"))
	assert.Equal(t, "ovo.id", providerFrom("noreply@ovo.id"))
	assert.Equal(t, FallbackProvider, providerFrom("Bank Notification"))
	assert.Equal(t, FallbackProvider, providerFrom(""))
}
