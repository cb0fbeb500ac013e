package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ledgerly/backend/internal/models"
	"github.com/ledgerly/backend/internal/services"
)

type CredentialConnector interface {
	Connect(ctx context.Context, userID, address, refreshToken string) (*models.MailboxCredential, error)
	Disconnect(ctx context.Context, userID string) error
}

type SyncRunner interface {
	Run(ctx context.Context, userID string) (*services.SyncResult, error)
	RecentLogs(ctx context.Context, userID string, limit int) ([]models.SyncLogEntry, error)
}

type ConnectMailboxRequest struct {
	MailboxAddress string `json:"mailbox_address" validate:"required,email,max=255"`
	RefreshToken   string `json:"refresh_token" validate:"required,max=2048"`
}

type MailboxHandler struct {
	credentials CredentialConnector
	sync        SyncRunner
	validator   *services.ValidationHelper
}

func NewMailboxHandler(credentials CredentialConnector, sync SyncRunner) *MailboxHandler {
	return &MailboxHandler{
		credentials: credentials,
		sync:        sync,
		validator:   services.NewValidationHelper(),
	}
}

// ConnectMailbox stores a mailbox credential after testing it
// @Summary Connect mailbox
// @Description Test a refresh token against the mailbox provider and store it for sync
// @Tags Mailbox
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ConnectMailboxRequest true "Mailbox credential"
// @Success 201 {object} models.MailboxCredential
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /mailbox/credentials [post]
func (h *MailboxHandler) ConnectMailbox(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req ConnectMailboxRequest
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	cred, err := h.credentials.Connect(r.Context(), userID, req.MailboxAddress, req.RefreshToken)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusCreated, cred)
}

// DisconnectMailbox disables the stored mailbox credential
// @Summary Disconnect mailbox
// @Tags Mailbox
// @Security BearerAuth
// @Success 204
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /mailbox/credentials [delete]
func (h *MailboxHandler) DisconnectMailbox(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	if err := h.credentials.Disconnect(r.Context(), userID); err != nil {
		services.SendAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunSync runs one ingestion pass for the caller
// @Summary Sync transactions from mailbox
// @Description Fetch transaction emails, extract transactions and upsert them into the ledger
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.SyncResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /sync [post]
func (h *MailboxHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	result, err := h.sync.Run(r.Context(), userID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, result)
}

// SyncLogs lists recent sync passes
// @Summary Sync log feed
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries (max 100)"
// @Success 200 {array} models.SyncLogEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /sync/logs [get]
func (h *MailboxHandler) SyncLogs(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			services.SendErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	entries, err := h.sync.RecentLogs(r.Context(), userID, limit)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	if entries == nil {
		entries = []models.SyncLogEntry{}
	}

	services.WriteJSON(w, http.StatusOK, entries)
}
