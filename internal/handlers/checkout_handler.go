package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerly/backend/internal/models"
	"github.com/ledgerly/backend/internal/services"
)

type CheckoutInitiator interface {
	InitiateCheckout(ctx context.Context, userID string, req services.CheckoutRequest) (*services.CheckoutResult, error)
	OpenCheckout(ctx context.Context, userID string) (*models.PendingPayment, error)
}

type CheckoutQRRenderer interface {
	CheckoutQR(ctx context.Context, userID, orderID string) ([]byte, error)
}

type CheckoutHandler struct {
	checkout  CheckoutInitiator
	qr        CheckoutQRRenderer
	validator *services.ValidationHelper
}

func NewCheckoutHandler(checkout CheckoutInitiator, qr CheckoutQRRenderer) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:  checkout,
		qr:        qr,
		validator: services.NewValidationHelper(),
	}
}

// CreateCheckout starts a subscription payment
// @Summary Create checkout
// @Description Create a hosted checkout for a plan, or return the caller's open checkout
// @Tags Checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CheckoutRequest true "Checkout request"
// @Success 200 {object} services.CheckoutResult "Existing open checkout"
// @Success 201 {object} services.CheckoutResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /checkout [post]
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req services.CheckoutRequest
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.checkout.InitiateCheckout(r.Context(), userID, req)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	}
	services.WriteJSON(w, status, result)
}

// PendingCheckout returns the caller's open checkout
// @Summary Open checkout
// @Tags Checkout
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.PendingPayment
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /checkout/pending [get]
func (h *CheckoutHandler) PendingCheckout(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	open, err := h.checkout.OpenCheckout(r.Context(), userID)
	if errors.Is(err, services.ErrCheckoutNotFound) {
		services.SendErrorResponse(w, "No open checkout", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, open)
}

// CheckoutQR renders the checkout payment link as a QR code
// @Summary Checkout QR code
// @Tags Checkout
// @Produce png
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {file} binary
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /checkout/{orderId}/qr [get]
func (h *CheckoutHandler) CheckoutQR(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	orderID := chi.URLParam(r, "orderId")
	if orderID == "" || len(orderID) > 50 {
		services.SendErrorResponse(w, "Invalid order id", http.StatusBadRequest, nil)
		return
	}

	png, err := h.qr.CheckoutQR(r.Context(), userID, orderID)
	if errors.Is(err, services.ErrCheckoutNotFound) {
		services.SendErrorResponse(w, "Checkout not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
