package account

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups when no account matches.
var ErrNotFound = errors.New("account not found")

// TokenUpdate carries refreshed OAuth material to be written back to
// the store after a fetch reports a refresh.
type TokenUpdate struct {
	AccessToken string
	Expiry      time.Time
}

// Store is the external account document store. The aggregation engine
// only reads accounts and writes back refreshed tokens; account creation
// and deletion happen elsewhere.
type Store interface {
	// Get returns the account with the given id.
	Get(ctx context.Context, id string) (Account, error)

	// List returns all stored accounts.
	List(ctx context.Context) ([]Account, error)

	// FindByEmail returns the account with the given email address.
	FindByEmail(ctx context.Context, email string) (Account, error)

	// UpdateToken persists a refreshed access token for the account
	// identified by (email, id).
	UpdateToken(ctx context.Context, email, id string, update TokenUpdate) error
}
