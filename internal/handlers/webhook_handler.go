package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/ledgerly/backend/internal/services"
)

const maxNotificationBytes = 64 << 10

type NotificationHandler interface {
	Handle(ctx context.Context, body []byte) (*services.WebhookResult, error)
}

type WebhookResponse struct {
	Status  string                  `json:"status"`
	Outcome services.WebhookOutcome `json:"outcome"`
	OrderID string                  `json:"order_id,omitempty"`
}

type WebhookHandler struct {
	webhook NotificationHandler
}

func NewWebhookHandler(webhook NotificationHandler) *WebhookHandler {
	return &WebhookHandler{webhook: webhook}
}

// PaymentNotification receives payment status notifications from the gateway
// @Summary Payment gateway notification
// @Description Authenticated by the notification signature, not by a bearer token
// @Tags Webhook
// @Accept json
// @Produce json
// @Param request body models.PaymentNotification true "Gateway notification"
// @Success 200 {object} WebhookResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /webhook [post]
func (h *WebhookHandler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		services.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "ignored", Outcome: services.OutcomeMalformed})
		return
	}

	result, err := h.webhook.Handle(r.Context(), body)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	status := "ok"
	if result.Ignored() {
		status = "ignored"
	}
	services.WriteJSON(w, http.StatusOK, WebhookResponse{
		Status:  status,
		Outcome: result.Outcome,
		OrderID: result.OrderID,
	})
}
