package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ledgerly/backend/internal/models"
	"github.com/ledgerly/backend/internal/services"
)

type TransactionLister interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.TransactionCandidate, error)
}

type TransactionHandler struct {
	ledger    TransactionLister
	validator *services.ValidationHelper
}

func NewTransactionHandler(ledger TransactionLister) *TransactionHandler {
	return &TransactionHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// GetRecentTransactions retrieves recent ledger transactions
// @Summary Get recent transactions
// @Description Get transactions extracted from the caller's mailbox, newest first
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of transactions to return (default: 10, max: 100)"
// @Success 200 {array} models.TransactionCandidate
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /transactions/recent [get]
func (h *TransactionHandler) GetRecentTransactions(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req struct {
		Limit int `validate:"min=1,max=100"`
	}
	req.Limit = 10

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			services.SendErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		req.Limit = l
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transactions, err := h.ledger.ListRecent(r.Context(), userID, req.Limit)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, transactions)
}
