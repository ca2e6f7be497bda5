package calfeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/instrumentation"
	"github.com/sharedbox/sharedbox/internal/logging"
	"github.com/sharedbox/sharedbox/internal/token"
)

// defaultWindow is the lookahead used when the caller omits a time
// range.
const defaultWindow = 7 * 24 * time.Hour

// Fetcher retrieves calendar events for OAuth accounts. Calendar calls
// always force a token refresh first: event windows are fetched rarely
// and a stale-but-unexpired token rejected by the calendar scope is
// harder to diagnose than one extra refresh exchange.
type Fetcher struct {
	tokens  *token.Manager
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	client        *http.Client
	graphBaseURL  string
	clientOptions []option.ClientOption
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for Graph calls.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithGraphBaseURL overrides the Graph endpoint, used by tests.
func WithGraphBaseURL(u string) Option {
	return func(f *Fetcher) { f.graphBaseURL = u }
}

// WithGoogleClientOptions appends Google API client options, used by
// tests to point the calendar service at a local server.
func WithGoogleClientOptions(opts ...option.ClientOption) Option {
	return func(f *Fetcher) { f.clientOptions = opts }
}

// NewFetcher creates a calendar fetcher backed by the given token
// manager.
func NewFetcher(tokens *token.Manager, logger *slog.Logger, metrics *instrumentation.Metrics, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		tokens:  tokens,
		logger:  logger,
		metrics: metrics,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		graphBaseURL: "https://graph.microsoft.com/v1.0",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchEvents returns the account's calendar events in [timeMin,
// timeMax]. The bounds are RFC 3339 strings as supplied by the caller;
// zone-less values are taken as UTC and an empty range defaults to the
// next seven days.
func (f *Fetcher) FetchEvents(ctx context.Context, acct account.Account, timeMin, timeMax string) ([]Event, token.Outcome, error) {
	if !acct.Provider.IsOAuth() {
		return nil, token.Outcome{}, fmt.Errorf("provider %s has no calendar source", acct.Provider)
	}

	now := time.Now().UTC()
	timeMin = coerceRFC3339(timeMin)
	if timeMin == "" {
		timeMin = now.Format(time.RFC3339)
	}
	timeMax = coerceRFC3339(timeMax)
	if timeMax == "" {
		timeMax = now.Add(defaultWindow).Format(time.RFC3339)
	}

	outcome := f.tokens.Resolve(ctx, acct, true)
	if outcome.AccessToken == "" {
		return nil, outcome, &token.RefreshError{
			Provider: acct.Provider,
			Reason:   outcome.Err,
		}
	}

	var events []Event
	var err error
	switch acct.Provider {
	case account.ProviderGmail:
		events, err = f.fetchGoogle(ctx, outcome.AccessToken, timeMin, timeMax)
	case account.ProviderMicrosoft:
		events, err = f.fetchGraph(ctx, outcome.AccessToken, timeMin, timeMax)
	}
	if err != nil {
		return nil, outcome, err
	}

	f.logger.Info("fetched calendar events",
		logging.Account(acct.Name()),
		logging.Provider(string(acct.Provider)),
		slog.Int("events", len(events)))

	return events, outcome, nil
}
