package services

import (
	"context"
	"time"

	"github.com/ledgerly/backend/internal/gateway"
	"github.com/ledgerly/backend/internal/mailbox"
	"github.com/ledgerly/backend/internal/models"
	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"
	"google.golang.org/api/iterator"
)

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) GetActive(ctx context.Context, userID string) (*models.MailboxCredential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MailboxCredential), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, cred *models.MailboxCredential) (*models.MailboxCredential, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MailboxCredential), args.Error(1)
}

func (m *MockCredentialRepository) Deactivate(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockCredentialRepository) RotateSecret(ctx context.Context, credentialID, secret string) error {
	return m.Called(ctx, credentialID, secret).Error(0)
}

func (m *MockCredentialRepository) MarkSynced(ctx context.Context, credentialID string, at time.Time) error {
	return m.Called(ctx, credentialID, at).Error(0)
}

type MockMailboxClient struct {
	mock.Mock
}

func (m *MockMailboxClient) TestConnection(ctx context.Context, cred *models.MailboxCredential) (string, error) {
	args := m.Called(ctx, cred)
	return args.String(0), args.Error(1)
}

func (m *MockMailboxClient) RefreshAccessToken(ctx context.Context, cred *models.MailboxCredential) (*oauth2.Token, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *MockMailboxClient) ListMessages(ctx context.Context, token *oauth2.Token, query string, maxResults int64) mailbox.MessageIterator {
	return m.Called(ctx, token, query, maxResults).Get(0).(mailbox.MessageIterator)
}

func (m *MockMailboxClient) FetchMessage(ctx context.Context, token *oauth2.Token, ref mailbox.MessageRef) (*mailbox.RawMessage, error) {
	args := m.Called(ctx, token, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailbox.RawMessage), args.Error(1)
}

// sliceIterator yields refs and then err, or iterator.Done when err is nil.
type sliceIterator struct {
	refs []mailbox.MessageRef
	err  error
}

func (it *sliceIterator) Next() (mailbox.MessageRef, error) {
	if len(it.refs) == 0 {
		if it.err != nil {
			return mailbox.MessageRef{}, it.err
		}
		return mailbox.MessageRef{}, iterator.Done
	}
	ref := it.refs[0]
	it.refs = it.refs[1:]
	return ref, nil
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateTransaction(ctx context.Context, req gateway.TransactionRequest) (*gateway.TransactionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransactionResponse), args.Error(1)
}

func (m *MockGateway) VerifySignature(n *models.PaymentNotification) bool {
	return m.Called(n).Bool(0)
}
