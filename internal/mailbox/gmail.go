package mailbox

import (
	"context"
	"errors"
	"net/http"
	"net/textproto"
	"time"

	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/config"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	gmailUser   = "me"
	maxPageSize = 500
	formatFull  = "full"
)

// GmailClient implements Client against the Gmail REST API.
type GmailClient struct {
	oauth          *oauth2.Config
	endpoint       string
	httpClient     *http.Client
	connectTimeout time.Duration
	requestTimeout time.Duration
	log            zerolog.Logger
}

func NewGmailClient(cfg config.MailboxConfig, log zerolog.Logger) *GmailClient {
	return &GmailClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{gmail.GmailReadonlyScope},
		},
		endpoint:       cfg.APIEndpoint,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		connectTimeout: cfg.ConnectTimeout,
		requestTimeout: cfg.RequestTimeout,
		log:            logger.Component(log, "mailbox"),
	}
}

func (c *GmailClient) TestConnection(ctx context.Context, cred *models.MailboxCredential) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	token, err := c.RefreshAccessToken(ctx, cred)
	if err != nil {
		return "", err
	}

	svc, err := c.service(ctx, token)
	if err != nil {
		return "", err
	}

	profile, err := svc.Users.GetProfile(gmailUser).Context(ctx).Do()
	if err != nil {
		return "", classify("mailbox.test_connection", err)
	}

	return profile.EmailAddress, nil
}

// RefreshAccessToken performs a single refresh-token grant. A rotated refresh
// token, if the provider issued one, is returned in token.RefreshToken.
func (c *GmailClient) RefreshAccessToken(ctx context.Context, cred *models.MailboxCredential) (*oauth2.Token, error) {
	if cred == nil || cred.Secret == "" {
		return nil, apperr.New(apperr.KindNotConfigured, "mailbox.refresh", "no mailbox secret stored")
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.Secret}).Token()
	if err != nil {
		c.log.Warn().
			Str("user_id", cred.UserID).
			Bool("permanent", IsPermanentRefreshError(err)).
			Msg("Token refresh failed")
		return nil, apperr.Wrapf(apperr.KindAuth, "mailbox.refresh", err, "mailbox authorization failed")
	}

	return token, nil
}

func (c *GmailClient) ListMessages(ctx context.Context, token *oauth2.Token, query string, maxResults int64) MessageIterator {
	svc, err := c.service(ctx, token)
	return &gmailIterator{
		ctx:       ctx,
		svc:       svc,
		err:       err,
		query:     query,
		remaining: maxResults,
		timeout:   c.requestTimeout,
	}
}

func (c *GmailClient) FetchMessage(ctx context.Context, token *oauth2.Token, ref MessageRef) (*RawMessage, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	msg, err := svc.Users.Messages.Get(gmailUser, ref.ID).Format(formatFull).Context(ctx).Do()
	if err != nil {
		return nil, classify("mailbox.fetch", err)
	}

	return toRawMessage(msg), nil
}

func (c *GmailClient) service(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	base := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	httpClient := oauth2.NewClient(base, oauth2.StaticTokenSource(token))

	svc, err := gmail.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(c.endpoint),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "mailbox.service", err)
	}
	return svc, nil
}

type gmailIterator struct {
	ctx       context.Context
	svc       *gmail.Service
	err       error
	query     string
	remaining int64
	timeout   time.Duration
	page      []*gmail.Message
	pageToken string
	started   bool
}

func (it *gmailIterator) Next() (MessageRef, error) {
	if it.err != nil {
		return MessageRef{}, it.err
	}
	if it.remaining <= 0 {
		return MessageRef{}, iterator.Done
	}

	for len(it.page) == 0 {
		if it.started && it.pageToken == "" {
			return MessageRef{}, iterator.Done
		}
		if err := it.fetchPage(); err != nil {
			it.err = err
			return MessageRef{}, err
		}
	}

	msg := it.page[0]
	it.page = it.page[1:]
	it.remaining--
	return MessageRef{ID: msg.Id, ThreadID: msg.ThreadId}, nil
}

func (it *gmailIterator) fetchPage() error {
	ctx, cancel := context.WithTimeout(it.ctx, it.timeout)
	defer cancel()

	call := it.svc.Users.Messages.List(gmailUser).
		Q(it.query).
		MaxResults(min(it.remaining, maxPageSize)).
		Context(ctx)
	if it.pageToken != "" {
		call = call.PageToken(it.pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return classify("mailbox.list", err)
	}

	it.started = true
	it.page = resp.Messages
	it.pageToken = resp.NextPageToken
	return nil
}

func toRawMessage(msg *gmail.Message) *RawMessage {
	raw := &RawMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Headers:  map[string]string{},
	}
	if msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			key := textproto.CanonicalMIMEHeaderKey(h.Name)
			if _, seen := raw.Headers[key]; !seen {
				raw.Headers[key] = h.Value
			}
		}
		raw.Body = toPart(msg.Payload)
	}
	return raw
}

func toPart(p *gmail.MessagePart) *Part {
	part := &Part{MimeType: p.MimeType}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, toPart(child))
	}
	return part
}

func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return apperr.Wrapf(apperr.KindAuth, op, err, "mailbox authorization failed")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrapf(apperr.KindProvider, op, err, "mailbox provider timed out")
	}
	return apperr.Wrapf(apperr.KindProvider, op, err, "mailbox provider unavailable")
}
