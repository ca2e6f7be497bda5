package account

import (
	"fmt"
	"time"
)

// Provider identifies which mail backend an account belongs to.
// It is a closed set: adding a provider means adding an adapter, not
// another branch in caller code.
type Provider string

const (
	// ProviderIMAP is a plain IMAP mailbox with password credentials.
	ProviderIMAP Provider = "imap"
	// ProviderGmail is a Gmail mailbox accessed through Google OAuth.
	ProviderGmail Provider = "gmail-oauth"
	// ProviderMicrosoft is an Outlook mailbox accessed through Microsoft Graph.
	ProviderMicrosoft Provider = "microsoft-oauth"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderIMAP, ProviderGmail, ProviderMicrosoft:
		return true
	}
	return false
}

// IsOAuth reports whether the provider authenticates with OAuth tokens.
func (p Provider) IsOAuth() bool {
	return p == ProviderGmail || p == ProviderMicrosoft
}

// IMAPCredentials holds connection settings for a plain IMAP account.
type IMAPCredentials struct {
	Host     string `json:"host" db:"imap_host"`
	Port     int    `json:"port" db:"imap_port"`
	User     string `json:"user" db:"imap_user"`
	Password string `json:"password" db:"imap_password"`
	UseTLS   bool   `json:"useTLS" db:"imap_tls"`
}

// Complete reports whether the credentials carry everything needed to connect.
func (c IMAPCredentials) Complete() bool {
	return c.Host != "" && c.User != "" && c.Password != ""
}

// OAuthCredentials holds token material for an OAuth account.
//
// Gmail accounts carry a RefreshToken. Microsoft accounts carry an
// AccountHandle instead: the identity cache key used for silent refresh.
// Without it, refresh is impossible until the user re-authorizes.
type OAuthCredentials struct {
	AccessToken   string    `json:"accessToken" db:"access_token"`
	RefreshToken  string    `json:"refreshToken,omitempty" db:"refresh_token"`
	AccountHandle string    `json:"accountHandle,omitempty" db:"account_handle"`
	Expiry        time.Time `json:"expiry,omitempty" db:"token_expiry"`
	Scope         string    `json:"scope,omitempty" db:"token_scope"`
}

// Account identifies one mailbox and its credentials. Exactly one of IMAP
// or OAuth is populated, matching Provider.
type Account struct {
	ID          string   `json:"id" db:"id"`
	Provider    Provider `json:"provider" db:"provider"`
	Email       string   `json:"email" db:"email"`
	DisplayName string   `json:"displayName,omitempty" db:"display_name"`

	IMAP  *IMAPCredentials  `json:"imap,omitempty"`
	OAuth *OAuthCredentials `json:"oauth,omitempty"`
}

// Name returns the human-facing label for the account, falling back to
// the email address.
func (a Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Email
}

// Validate checks the credential-variant invariant: the populated
// credentials must match the provider.
func (a Account) Validate() error {
	if !a.Provider.Valid() {
		return fmt.Errorf("unknown provider %q", a.Provider)
	}
	if a.Provider == ProviderIMAP {
		if a.IMAP == nil {
			return fmt.Errorf("account %s: imap provider without imap credentials", a.Email)
		}
		if a.OAuth != nil {
			return fmt.Errorf("account %s: imap provider with oauth credentials", a.Email)
		}
		return nil
	}
	if a.OAuth == nil {
		return fmt.Errorf("account %s: oauth provider without oauth credentials", a.Email)
	}
	if a.IMAP != nil {
		return fmt.Errorf("account %s: oauth provider with imap credentials", a.Email)
	}
	return nil
}
