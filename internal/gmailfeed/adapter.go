package gmailfeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/instrumentation"
	"github.com/sharedbox/sharedbox/internal/logging"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
	"github.com/sharedbox/sharedbox/internal/token"
)

// Adapter fetches inbox messages through the Gmail API. A fresh service
// is built per call from the account's resolved access token so that no
// credential state is shared across concurrent account fetches.
type Adapter struct {
	tokens  *token.Manager
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	// extra client options, used by tests to point the service at a
	// local server
	clientOptions []option.ClientOption
}

// NewAdapter creates a Gmail adapter backed by the given token manager.
func NewAdapter(tokens *token.Manager, logger *slog.Logger, metrics *instrumentation.Metrics, opts ...option.ClientOption) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		tokens:        tokens,
		logger:        logger,
		metrics:       metrics,
		clientOptions: opts,
	}
}

// Provider implements mailfeed.Adapter.
func (a *Adapter) Provider() account.Provider {
	return account.ProviderGmail
}

func (a *Adapter) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	opts := append([]option.ClientOption{option.WithTokenSource(source)}, a.clientOptions...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// FetchPage implements mailfeed.Adapter. The cursor is Gmail's own page
// token, passed back verbatim.
func (a *Adapter) FetchPage(ctx context.Context, acct account.Account, cursor string) (mailfeed.Page, error) {
	logger := logging.WithAccount(a.logger, acct.Name())
	start := time.Now()

	outcome := a.tokens.Resolve(ctx, acct, false)
	if outcome.AccessToken == "" {
		return mailfeed.Page{}, &token.RefreshError{
			Provider: account.ProviderGmail,
			Reason:   outcome.Err,
		}
	}

	svc, err := a.service(ctx, outcome.AccessToken)
	if err != nil {
		return mailfeed.Page{}, err
	}

	page, err := mailfeed.WithTimeout(ctx, "gmail fetch", mailfeed.FetchTimeout,
		func(opCtx context.Context) (mailfeed.Page, error) {
			return a.fetchInbox(opCtx, svc, acct, cursor)
		})
	if err != nil {
		return mailfeed.Page{}, err
	}
	page.Token = &outcome

	a.metrics.RecordFetchDuration(ctx, string(account.ProviderGmail), time.Since(start))
	logger.Info("fetched inbox page",
		logging.Provider(string(account.ProviderGmail)),
		slog.Int("messages", len(page.Messages)),
		slog.Bool("has_more", page.NextCursor != ""))

	return page, nil
}

// fetchInbox lists one page of inbox message IDs and fetches each
// message's full payload concurrently. A message whose detail fetch
// fails is dropped from the page rather than failing the whole account.
func (a *Adapter) fetchInbox(ctx context.Context, svc *gmail.Service, acct account.Account, cursor string) (mailfeed.Page, error) {
	call := svc.Users.Messages.List("me").
		Q("in:inbox").
		MaxResults(mailfeed.PageSize).
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	res, err := call.Do()
	if err != nil {
		return mailfeed.Page{}, &mailfeed.ProviderAPIError{
			Provider: string(account.ProviderGmail),
			Op:       "list messages",
			Err:      err,
		}
	}

	slots := make([]*mailfeed.Message, len(res.Messages))

	var wg sync.WaitGroup
	for i, ref := range res.Messages {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			msg, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
			if err != nil {
				a.logger.Warn("failed to fetch message detail",
					logging.Account(acct.Name()),
					slog.String("message_id", id),
					logging.Err(err))
				return
			}
			m := normalizeMessage(acct, msg)
			slots[i] = &m
		}(i, ref.Id)
	}
	wg.Wait()

	messages := make([]mailfeed.Message, 0, len(slots))
	for _, m := range slots {
		if m != nil {
			messages = append(messages, *m)
		}
	}

	return mailfeed.Page{
		Messages:   messages,
		NextCursor: res.NextPageToken,
	}, nil
}

// MarkRead implements mailfeed.Adapter by removing the UNREAD label.
func (a *Adapter) MarkRead(ctx context.Context, acct account.Account, providerMessageID string) error {
	outcome := a.tokens.Resolve(ctx, acct, false)
	if outcome.AccessToken == "" {
		return &token.RefreshError{
			Provider: account.ProviderGmail,
			Reason:   outcome.Err,
		}
	}

	svc, err := a.service(ctx, outcome.AccessToken)
	if err != nil {
		return err
	}

	_, err = svc.Users.Messages.Modify("me", providerMessageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return &mailfeed.ProviderAPIError{
			Provider: string(account.ProviderGmail),
			Op:       "mark read",
			Err:      err,
		}
	}

	a.logger.Info("marked message as read",
		logging.Account(acct.Name()),
		logging.Provider(string(account.ProviderGmail)),
		slog.String("message_id", providerMessageID))
	return nil
}
