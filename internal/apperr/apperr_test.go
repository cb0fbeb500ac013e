package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("wrapped app error", func(t *testing.T) {
		err := fmt.Errorf("sync pass: %w", Wrap(KindAuth, "mailbox.refresh", errors.New("invalid_grant")))
		assert.Equal(t, KindAuth, KindOf(err))
		assert.True(t, Is(err, KindAuth))
		assert.False(t, Is(err, KindProvider))
	})

	t.Run("plain error is internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	})

	t.Run("nil error has no kind", func(t *testing.T) {
		assert.Equal(t, ErrorKind(""), KindOf(nil))
		assert.False(t, Is(nil, KindStore))
	})
}

func TestError_Unwrap(t *testing.T) {
	err := Wrap(KindStore, "ledger.upsert", sql.ErrConnDone)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "ledger.upsert")
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "plan not found", Message(New(KindValidation, "checkout", "plan not found")))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "", Message(nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindNotConfigured))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindProvider))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindStore))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInconsistency))
}
