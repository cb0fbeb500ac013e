// Package extractor turns a fetched mailbox message into a ledger candidate.
//
// Direction classification is a keyword heuristic and is expected to
// misclassify some messages; it is not authoritative.
package extractor

import (
	"encoding/base64"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/mailbox"
	"github.com/ledgerly/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	ReferencePrefix    = "EMAIL-"
	MaxPayloadRunes    = 500
	MaxDescriptionRune = 140
	FallbackProvider   = "email"
)

var (
	amountPattern   = regexp.MustCompile(`(?i)(\bRp\.?|\bIDR|\bUSD|\$)\s*(\d[\d.,]*)`)
	expenseKeywords = []string{"debit", "payment", "purchase"}

	errMalformedAmount = errors.New("malformed amount")
)

// Source identifies whose mailbox a message was fetched from.
type Source struct {
	UserID         string
	AccountID      string
	MailboxAddress string
}

// Extract parses raw into a candidate. Every returned error is of kind
// apperr.KindExtractionSkip: the message is skipped, the pass continues.
func Extract(raw *mailbox.RawMessage, src Source) (*models.TransactionCandidate, error) {
	const op = "extractor.extract"

	if raw == nil || raw.ID == "" {
		return nil, apperr.New(apperr.KindExtractionSkip, op, "message has no identifier")
	}

	body, ok := plainTextBody(raw.Body)
	if !ok {
		return nil, apperr.New(apperr.KindExtractionSkip, op, "no plain-text body")
	}

	match := amountPattern.FindStringSubmatch(body)
	if match == nil {
		return nil, apperr.New(apperr.KindExtractionSkip, op, "no currency amount")
	}

	amount, err := parseAmount(strings.TrimRight(match[2], ".,"))
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindExtractionSkip, op, err, "unparsable amount %q", match[2])
	}
	if amount.IsZero() {
		return nil, apperr.New(apperr.KindExtractionSkip, op, "zero amount")
	}

	date := raw.ReceivedAt
	if date.IsZero() {
		parsed, err := mail.ParseDate(raw.Header("Date"))
		if err != nil {
			return nil, apperr.New(apperr.KindExtractionSkip, op, "no receive time")
		}
		date = parsed.UTC()
	}

	direction := classify(body)
	if direction == models.DirectionExpense {
		amount = amount.Neg()
	}

	provider := providerFrom(raw.Header("From"))
	from, to := src.MailboxAddress, provider
	if direction == models.DirectionIncome {
		from, to = provider, src.MailboxAddress
	}

	return &models.TransactionCandidate{
		Reference:     ReferencePrefix + raw.ID,
		UserID:        src.UserID,
		AccountID:     src.AccountID,
		Date:          date,
		Description:   describe(raw.Header("Subject"), body),
		Amount:        amount,
		Currency:      currencyCode(match[1]),
		Provider:      provider,
		Direction:     direction,
		AccountFrom:   from,
		AccountTo:     to,
		Fee:           decimal.Zero,
		TotalAmount:   amount,
		SourcePayload: truncate(body, MaxPayloadRunes),
	}, nil
}

// plainTextBody returns the first text/plain part of a multipart message, or
// the body itself for a singular one.
func plainTextBody(part *mailbox.Part) (string, bool) {
	if part == nil {
		return "", false
	}

	mimeType := strings.ToLower(part.MimeType)
	if strings.HasPrefix(mimeType, "multipart/") {
		for _, child := range part.Parts {
			if body, ok := plainTextBody(child); ok {
				return body, true
			}
		}
		return "", false
	}

	if mimeType != "" && !strings.HasPrefix(mimeType, "text/plain") {
		return "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Data, "="))
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}

	body := strings.TrimSpace(string(decoded))
	return body, body != ""
}

// parseAmount accepts an unsigned literal with optional grouping separators
// and at most two decimal places. A final separator followed by one or two
// digits is the decimal point; every other separator groups thousands.
func parseAmount(literal string) (decimal.Decimal, error) {
	intPart, frac := literal, ""
	if i := strings.LastIndexAny(literal, ".,"); i >= 0 {
		if tail := literal[i+1:]; len(tail) == 1 || len(tail) == 2 {
			intPart, frac = literal[:i], tail
			if strings.ContainsRune(intPart, rune(literal[i])) {
				return decimal.Zero, errMalformedAmount
			}
		}
	}

	var groupSep rune
	for _, r := range intPart {
		if r != '.' && r != ',' {
			continue
		}
		if groupSep != 0 && r != groupSep {
			return decimal.Zero, errMalformedAmount
		}
		groupSep = r
	}

	digits := intPart
	if groupSep != 0 {
		groups := strings.Split(intPart, string(groupSep))
		for i, g := range groups {
			if g == "" || len(g) > 3 || (i > 0 && len(g) != 3) {
				return decimal.Zero, errMalformedAmount
			}
		}
		digits = strings.Join(groups, "")
	}

	if frac != "" {
		digits += "." + frac
	}
	return decimal.NewFromString(digits)
}

func classify(body string) models.Direction {
	lower := strings.ToLower(body)
	for _, kw := range expenseKeywords {
		if strings.Contains(lower, kw) {
			return models.DirectionExpense
		}
	}
	return models.DirectionIncome
}

func currencyCode(marker string) string {
	switch strings.ToUpper(strings.TrimSuffix(marker, ".")) {
	case "RP", "IDR":
		return "IDR"
	default:
		return "USD"
	}
}

// providerFrom returns the sender domain, or FallbackProvider.
func providerFrom(from string) string {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return FallbackProvider
	}
	domain := strings.ToLower(strings.Trim(addr[at+1:], "<> \t"))
	if domain == "" {
		return FallbackProvider
	}
	return domain
}

func describe(subject, body string) string {
	if s := strings.TrimSpace(subject); s != "" {
		return truncate(s, MaxDescriptionRune)
	}
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, MaxDescriptionRune)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
