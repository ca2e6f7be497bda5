package graphmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/instrumentation"
	"github.com/sharedbox/sharedbox/internal/logging"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
	"github.com/sharedbox/sharedbox/internal/token"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// selectFields limits each message to the fields the normalizer reads.
var selectFields = strings.Join([]string{
	"id",
	"conversationId",
	"subject",
	"from",
	"toRecipients",
	"receivedDateTime",
	"bodyPreview",
	"body",
	"isRead",
}, ",")

// Adapter fetches inbox messages from the Microsoft Graph API.
type Adapter struct {
	tokens  *token.Manager
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	client  *http.Client
	baseURL string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient overrides the HTTP client used for Graph calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithBaseURL overrides the Graph endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

// NewAdapter creates a Microsoft Graph adapter backed by the given token
// manager.
func NewAdapter(tokens *token.Manager, logger *slog.Logger, metrics *instrumentation.Metrics, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		tokens:  tokens,
		logger:  logger,
		metrics: metrics,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider implements mailfeed.Adapter.
func (a *Adapter) Provider() account.Provider {
	return account.ProviderMicrosoft
}

// FetchPage implements mailfeed.Adapter. The cursor is Graph's own
// @odata.nextLink URL, followed verbatim; an empty cursor starts from
// the top of the inbox.
func (a *Adapter) FetchPage(ctx context.Context, acct account.Account, cursor string) (mailfeed.Page, error) {
	logger := logging.WithAccount(a.logger, acct.Name())
	start := time.Now()

	outcome := a.tokens.Resolve(ctx, acct, false)
	if outcome.AccessToken == "" {
		return mailfeed.Page{}, &token.RefreshError{
			Provider: account.ProviderMicrosoft,
			Reason:   outcome.Err,
		}
	}

	requestURL := cursor
	if requestURL == "" {
		query := url.Values{}
		query.Set("$top", fmt.Sprint(mailfeed.PageSize))
		query.Set("$orderby", "receivedDateTime desc")
		query.Set("$select", selectFields)
		requestURL = a.baseURL + "/me/mailFolders/inbox/messages?" + query.Encode()
	}

	listing, err := mailfeed.WithTimeout(ctx, "graph fetch", mailfeed.FetchTimeout,
		func(opCtx context.Context) (*messageListing, error) {
			return a.listMessages(opCtx, outcome.AccessToken, requestURL)
		})
	if err != nil {
		return mailfeed.Page{}, err
	}

	messages := make([]mailfeed.Message, 0, len(listing.Value))
	for _, gm := range listing.Value {
		messages = append(messages, normalizeMessage(acct, gm))
	}

	a.metrics.RecordFetchDuration(ctx, string(account.ProviderMicrosoft), time.Since(start))
	logger.Info("fetched inbox page",
		logging.Provider(string(account.ProviderMicrosoft)),
		slog.Int("messages", len(messages)),
		slog.Bool("has_more", listing.NextLink != ""))

	return mailfeed.Page{
		Messages:   messages,
		NextCursor: listing.NextLink,
		Token:      &outcome,
	}, nil
}

func (a *Adapter) listMessages(ctx context.Context, accessToken, requestURL string) (*messageListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := a.client.Do(req)
	if err != nil {
		return nil, &mailfeed.ProviderAPIError{
			Provider: string(account.ProviderMicrosoft),
			Op:       "list messages",
			Err:      err,
		}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &mailfeed.ProviderAPIError{
			Provider: string(account.ProviderMicrosoft),
			Op:       "list messages",
			Err:      fmt.Errorf("http status %s", res.Status),
		}
	}

	var listing messageListing
	if err := json.NewDecoder(res.Body).Decode(&listing); err != nil {
		return nil, &mailfeed.ProviderAPIError{
			Provider: string(account.ProviderMicrosoft),
			Op:       "decode listing",
			Err:      err,
		}
	}
	return &listing, nil
}

// MarkRead implements mailfeed.Adapter by patching isRead on the
// message.
func (a *Adapter) MarkRead(ctx context.Context, acct account.Account, providerMessageID string) error {
	outcome := a.tokens.Resolve(ctx, acct, false)
	if outcome.AccessToken == "" {
		return &token.RefreshError{
			Provider: account.ProviderMicrosoft,
			Reason:   outcome.Err,
		}
	}

	body, err := json.Marshal(map[string]bool{"isRead": true})
	if err != nil {
		return fmt.Errorf("failed to encode patch body: %w", err)
	}

	requestURL := a.baseURL + "/me/messages/" + url.PathEscape(providerMessageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, requestURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build Graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+outcome.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return &mailfeed.ProviderAPIError{
			Provider: string(account.ProviderMicrosoft),
			Op:       "mark read",
			Err:      err,
		}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return &mailfeed.ProviderAPIError{
			Provider: string(account.ProviderMicrosoft),
			Op:       "mark read",
			Err:      fmt.Errorf("http status %s", res.Status),
		}
	}

	a.logger.Info("marked message as read",
		logging.Account(acct.Name()),
		logging.Provider(string(account.ProviderMicrosoft)),
		slog.String("message_id", providerMessageID))
	return nil
}
