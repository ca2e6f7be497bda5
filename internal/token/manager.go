package token

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/logging"
)

// StalenessMargin is the buffer before actual expiry at which a token is
// considered stale and refreshed proactively.
const StalenessMargin = 60 * time.Second

// MicrosoftTokenURL is the Microsoft identity platform v2.0 token endpoint.
const MicrosoftTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

// Outcome is the result of resolving a token for one fetch. Refreshed
// signals that the caller must persist the new token. When a refresh
// attempt fails, the last known token is returned with Refreshed=false
// and Err set: it might coincidentally still be valid, so callers may
// attempt the fetch anyway instead of failing hard.
type Outcome struct {
	AccessToken string
	Expiry      time.Time
	Refreshed   bool
	Err         string
}

// RefreshError reports a failed token refresh exchange.
type RefreshError struct {
	Provider account.Provider
	Reason   string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s token refresh failed: %s", e.Provider, e.Reason)
}

// GoogleApp holds the OAuth application credentials used for Gmail
// refresh exchanges.
type GoogleApp struct {
	ClientID     string
	ClientSecret string
	// TokenURL overrides the Google token endpoint. Empty means the
	// production endpoint; tests point it at a local server.
	TokenURL string
}

// MicrosoftCache looks up the long-lived refresh credential cached for a
// Microsoft account handle. The handle is issued at authorization time;
// an account without a cached credential cannot be silently refreshed
// until the user re-authorizes.
type MicrosoftCache interface {
	RefreshCredential(handle string) (string, bool)
}

// Manager decides per account whether the cached access token is stale
// and performs the provider's refresh exchange when it is.
//
// A token is stale when now >= expiry - StalenessMargin, when the expiry
// is absent, or when the caller forces a refresh (calendar calls force,
// because a stale token fails those APIs silently instead of erroring).
type Manager struct {
	google   GoogleApp
	msCache  MicrosoftCache
	msToken  string // Microsoft token endpoint, overridable for tests
	msScopes []string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the HTTP client used for refresh exchanges.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithMicrosoftTokenURL overrides the Microsoft token endpoint.
func WithMicrosoftTokenURL(u string) Option {
	return func(m *Manager) { m.msToken = u }
}

// WithClock overrides the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager for the given Google application
// credentials and Microsoft credential cache.
func NewManager(google GoogleApp, msCache MicrosoftCache, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		google:  google,
		msCache: msCache,
		msToken: MicrosoftTokenURL,
		msScopes: []string{
			"openid", "profile", "email", "offline_access",
			"https://graph.microsoft.com/Mail.Read",
			"https://graph.microsoft.com/Mail.ReadWrite",
			"https://graph.microsoft.com/Calendars.Read",
			"https://graph.microsoft.com/User.Read",
		},
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stale reports whether the credentials need a refresh at this instant.
func (m *Manager) Stale(creds *account.OAuthCredentials) bool {
	if creds.Expiry.IsZero() {
		return true
	}
	return !m.now().Before(creds.Expiry.Add(-StalenessMargin))
}

// Resolve returns a usable access token for the account, refreshing it
// first when stale or when force is set. Refresh failure degrades to the
// last known token rather than erroring out.
func (m *Manager) Resolve(ctx context.Context, acct account.Account, force bool) Outcome {
	creds := acct.OAuth
	if creds == nil {
		return Outcome{Err: "account has no oauth credentials"}
	}

	if !force && !m.Stale(creds) {
		return Outcome{AccessToken: creds.AccessToken, Expiry: creds.Expiry}
	}

	logger := logging.WithProvider(m.logger, string(acct.Provider))
	logger.Debug("refreshing access token", logging.UserHash(acct.Email))

	var outcome Outcome
	var err error
	switch acct.Provider {
	case account.ProviderGmail:
		outcome, err = m.refreshGoogle(ctx, creds)
	case account.ProviderMicrosoft:
		outcome, err = m.refreshMicrosoft(ctx, creds)
	default:
		err = fmt.Errorf("provider %s does not use oauth tokens", acct.Provider)
	}
	if err != nil {
		logger.Warn("token refresh failed, falling back to last known token",
			logging.UserHash(acct.Email), logging.Err(err))
		return Outcome{
			AccessToken: creds.AccessToken,
			Expiry:      creds.Expiry,
			Err:         err.Error(),
		}
	}

	logger.Info("access token refreshed",
		logging.UserHash(acct.Email),
		slog.Time("expiry", outcome.Expiry))
	return outcome
}

// refreshGoogle exchanges the stored refresh token for a new access token
// via a fresh oauth2 token source. A new source is built per call so that
// no credential state is shared across concurrent account fetches.
func (m *Manager) refreshGoogle(ctx context.Context, creds *account.OAuthCredentials) (Outcome, error) {
	if creds.RefreshToken == "" {
		return Outcome{}, &RefreshError{Provider: account.ProviderGmail, Reason: "no refresh token"}
	}

	endpoint := oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	}
	if m.google.TokenURL != "" {
		endpoint.TokenURL = m.google.TokenURL
	}
	conf := &oauth2.Config{
		ClientID:     m.google.ClientID,
		ClientSecret: m.google.ClientSecret,
		Endpoint:     endpoint,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return Outcome{}, &RefreshError{Provider: account.ProviderGmail, Reason: err.Error()}
	}

	return Outcome{
		AccessToken: tok.AccessToken,
		Expiry:      tok.Expiry,
		Refreshed:   true,
	}, nil
}

// refreshMicrosoft performs the silent-refresh exchange against the
// identity platform using the credential cached for the account handle.
// A missing handle or cache entry is a permanent failure for the account
// until the user re-authorizes.
func (m *Manager) refreshMicrosoft(ctx context.Context, creds *account.OAuthCredentials) (Outcome, error) {
	if creds.AccountHandle == "" {
		return Outcome{}, &RefreshError{Provider: account.ProviderMicrosoft, Reason: "no cached account handle"}
	}
	if m.msCache == nil {
		return Outcome{}, &RefreshError{Provider: account.ProviderMicrosoft, Reason: "no credential cache configured"}
	}
	refresh, ok := m.msCache.RefreshCredential(creds.AccountHandle)
	if !ok {
		return Outcome{}, &RefreshError{Provider: account.ProviderMicrosoft, Reason: "no cached credential for account handle"}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"scope":         {strings.Join(m.msScopes, " ")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.msToken, strings.NewReader(form.Encode()))
	if err != nil {
		return Outcome{}, &RefreshError{Provider: account.ProviderMicrosoft, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := m.client.Do(req)
	if err != nil {
		return Outcome{}, &RefreshError{Provider: account.ProviderMicrosoft, Reason: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Outcome{}, &RefreshError{
			Provider: account.ProviderMicrosoft,
			Reason:   fmt.Sprintf("token endpoint returned %s", res.Status),
		}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Outcome{}, &RefreshError{Provider: account.ProviderMicrosoft, Reason: err.Error()}
	}

	return Outcome{
		AccessToken: body.AccessToken,
		Expiry:      m.now().Add(time.Duration(body.ExpiresIn) * time.Second),
		Refreshed:   true,
	}, nil
}
