package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/ledgerly/backend/internal/apperr"
	"github.com/stretchr/testify/assert"
)

type checkoutInput struct {
	PlanSlug string `validate:"required,min=2"`
	Email    string `validate:"required,email"`
	Amount   int    `validate:"required,gt=0"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := checkoutInput{PlanSlug: "pro-monthly", Email: "buyer@example.com", Amount: 59000}
		assert.NoError(t, vh.ValidateStruct(&valid))
	})

	t.Run("invalid struct - missing required fields", func(t *testing.T) {
		invalid := checkoutInput{PlanSlug: "p"}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3)
	})

	t.Run("invalid email format", func(t *testing.T) {
		invalid := checkoutInput{PlanSlug: "pro-monthly", Email: "invalid-email", Amount: 1}

		err := vh.ValidateStruct(&invalid)
		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Email", validationErrors[0].Field())
		assert.Equal(t, "email", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&checkoutInput{PlanSlug: "p", Email: "bad"})

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "PlanSlug")
		assert.Contains(t, response.Details, "Email")
		assert.Contains(t, response.Details, "Amount")
	})

	t.Run("non-validator error adds no details", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, errors.New("boom"))

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Nil(t, response.Details)
	})
}

func TestSendAppError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.New(apperr.KindValidation, "checkout", "plan not found"), http.StatusBadRequest, "plan not found"},
		{apperr.New(apperr.KindNotConfigured, "sync", "no active mailbox credential"), http.StatusBadRequest, "no active mailbox credential"},
		{apperr.New(apperr.KindConflict, "sync", "sync already in progress"), http.StatusConflict, "sync already in progress"},
		{apperr.Wrapf(apperr.KindProvider, "gateway", errors.New("dial"), "payment gateway unreachable"), http.StatusInternalServerError, "payment gateway unreachable"},
		{apperr.Wrap(apperr.KindStore, "ledger", errors.New("pq: relation missing")), http.StatusInternalServerError, "Internal server error"},
		{errors.New("panic-ish"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		SendAppError(w, tt.err)

		assert.Equal(t, tt.status, w.Code)
		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, tt.message, response.Error)
	}
}

func TestDecodeJSONBody(t *testing.T) {
	var dst struct {
		PlanSlug string `json:"plan_slug"`
	}

	t.Run("single object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan_slug":"pro-monthly"}`))
		assert.NoError(t, DecodeJSONBody(httptest.NewRecorder(), r, &dst))
		assert.Equal(t, "pro-monthly", dst.PlanSlug)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan":"x"}`))
		err := DecodeJSONBody(httptest.NewRecorder(), r, &dst)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("trailing object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan_slug":"a"}{"plan_slug":"b"}`))
		err := DecodeJSONBody(httptest.NewRecorder(), r, &dst)
		assert.Equal(t, "Request body must only contain a single JSON object", apperr.Message(err))
	})
}
