// Package gateway is the client for the hosted-checkout payment gateway.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/config"
	"github.com/ledgerly/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout  = 15 * time.Second
	transactionPath = "/snap/v1/transactions"
	maxErrorBody    = 4 << 10
)

type Item struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

type TransactionRequest struct {
	OrderID     string
	GrossAmount decimal.Decimal
	Email       string
	Items       []Item
}

type TransactionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Gateway creates checkout transactions and authenticates their callbacks.
type Gateway interface {
	CreateTransaction(ctx context.Context, req TransactionRequest) (*TransactionResponse, error)
	VerifySignature(n *models.PaymentNotification) bool
}

type SnapClient struct {
	serverKey  string
	baseURL    string
	finishURL  string
	httpClient *http.Client
}

func NewSnapClient(cfg config.GatewayConfig) *SnapClient {
	return NewSnapClientWithHTTPClient(cfg, nil)
}

func NewSnapClientWithHTTPClient(cfg config.GatewayConfig, httpClient *http.Client) *SnapClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &SnapClient{
		serverKey:  strings.TrimSpace(cfg.ServerKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		finishURL:  cfg.FinishURL,
		httpClient: httpClient,
	}
}

type snapRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	CustomerDetails    snapCustomerDetails    `json:"customer_details"`
	ItemDetails        []snapItem             `json:"item_details,omitempty"`
	Callbacks          *snapCallbacks         `json:"callbacks,omitempty"`
}

type snapTransactionDetails struct {
	OrderID     string      `json:"order_id"`
	GrossAmount json.Number `json:"gross_amount"`
}

type snapCustomerDetails struct {
	Email string `json:"email"`
}

type snapItem struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

type snapCallbacks struct {
	Finish string `json:"finish"`
}

type snapError struct {
	ErrorMessages []string `json:"error_messages"`
}

func (c *SnapClient) CreateTransaction(ctx context.Context, req TransactionRequest) (*TransactionResponse, error) {
	const op = "gateway.create_transaction"

	if c.serverKey == "" || c.baseURL == "" {
		return nil, apperr.New(apperr.KindProvider, op, "payment gateway is not configured")
	}

	payload := snapRequest{
		TransactionDetails: snapTransactionDetails{
			OrderID:     req.OrderID,
			GrossAmount: json.Number(req.GrossAmount.String()),
		},
		CustomerDetails: snapCustomerDetails{Email: req.Email},
	}
	for _, item := range req.Items {
		payload.ItemDetails = append(payload.ItemDetails, snapItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    json.Number(item.Price.String()),
			Quantity: item.Quantity,
		})
	}
	if c.finishURL != "" {
		payload.Callbacks = &snapCallbacks{Finish: c.finishURL}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transactionPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	httpReq.SetBasicAuth(c.serverKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindProvider, op, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var se snapError
		_ = json.Unmarshal(raw, &se)
		detail := strings.Join(se.ErrorMessages, "; ")
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return nil, apperr.Wrapf(apperr.KindProvider, op,
			fmt.Errorf("status %d: %s", resp.StatusCode, detail),
			"payment gateway rejected the transaction")
	}

	var out TransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrapf(apperr.KindProvider, op, err, "invalid payment gateway response")
	}
	if out.RedirectURL == "" {
		return nil, apperr.New(apperr.KindProvider, op, "payment gateway returned no redirect url")
	}

	return &out, nil
}

// VerifySignature checks signature_key = SHA512(order_id + status_code +
// gross_amount + server_key), compared in constant time.
func (c *SnapClient) VerifySignature(n *models.PaymentNotification) bool {
	if n == nil || c.serverKey == "" || n.SignatureKey == "" {
		return false
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, c.serverKey)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(n.SignatureKey)), []byte(expected)) == 1
}

// Signature returns the lowercase hex notification signature.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
