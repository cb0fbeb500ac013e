// Package mailbox talks to the user's mailbox provider: OAuth refresh,
// candidate listing and full message fetch.
package mailbox

import (
	"context"
	"errors"
	"net/textproto"
	"strings"
	"time"

	"github.com/ledgerly/backend/internal/models"
	"golang.org/x/oauth2"
)

// MessageRef identifies a message at the provider.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Part is one MIME node of a fetched message. Data is base64url encoded as
// delivered by the provider.
type Part struct {
	MimeType string
	Data     string
	Parts    []*Part
}

// RawMessage is a fetched message before extraction.
type RawMessage struct {
	ID         string
	ThreadID   string
	ReceivedAt time.Time
	Headers    map[string]string
	Body       *Part
}

// Header returns the first value of the named header, case-insensitively.
func (m *RawMessage) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// MessageIterator is a finite, non-restartable sequence of message refs.
// Next returns iterator.Done once exhausted.
type MessageIterator interface {
	Next() (MessageRef, error)
}

type Client interface {
	// TestConnection verifies the credential and returns the address the
	// provider authenticated.
	TestConnection(ctx context.Context, cred *models.MailboxCredential) (string, error)
	RefreshAccessToken(ctx context.Context, cred *models.MailboxCredential) (*oauth2.Token, error)
	ListMessages(ctx context.Context, token *oauth2.Token, query string, maxResults int64) MessageIterator
	FetchMessage(ctx context.Context, token *oauth2.Token, ref MessageRef) (*RawMessage, error)
}

// IsPermanentRefreshError reports whether the token endpoint rejected the
// refresh token itself, as opposed to a transient failure.
func IsPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
