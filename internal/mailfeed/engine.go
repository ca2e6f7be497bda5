package mailfeed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/instrumentation"
	"github.com/sharedbox/sharedbox/internal/logging"
)

// TokenPersister receives refreshed OAuth tokens for write-back to the
// external account store. A persistence failure affects only the stored
// copy of the token, never the fetch that produced it.
type TokenPersister interface {
	PersistRefreshedToken(ctx context.Context, email, accountID string, update account.TokenUpdate) error
}

// Config assembles an Engine.
type Config struct {
	// Adapters, one per provider. Later entries for the same provider
	// replace earlier ones.
	Adapters []Adapter

	// Persister receives refreshed tokens. Optional.
	Persister TokenPersister

	// Fallback is the single legacy IMAP account used when an
	// aggregation call arrives with no accounts at all. Nil when the
	// process configuration is incomplete.
	Fallback *account.Account

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Engine fans fetches out across all configured accounts concurrently,
// merges the normalized results into one date-ordered feed, and reports
// per-account pagination state.
//
// Failure semantics: an adapter failure reduces that account to an empty
// result (logged, never fatal). Only the zero-accounts-with-no-fallback
// path fails the whole call, with a ConfigError.
type Engine struct {
	adapters  map[account.Provider]Adapter
	persister TokenPersister
	fallback  *account.Account
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// NewEngine creates an Engine from the given configuration.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	adapters := make(map[account.Provider]Adapter, len(cfg.Adapters))
	for _, a := range cfg.Adapters {
		adapters[a.Provider()] = a
	}
	return &Engine{
		adapters:  adapters,
		persister: cfg.Persister,
		fallback:  cfg.Fallback,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// accountKey is the identifier under which cursors and pagination state
// are exchanged with the caller.
func accountKey(acct account.Account) string {
	if acct.Email != "" {
		return acct.Email
	}
	return acct.Name()
}

// fetchSlot is the per-account outcome collected by the fan-out. Each
// goroutine writes only its own slot, so no locking is needed.
type fetchSlot struct {
	acct account.Account
	page Page
	err  error
}

// FetchAll fetches the next page from every account concurrently and
// merges the results. Cursors map account keys to the cursor previously
// issued for that account.
func (e *Engine) FetchAll(ctx context.Context, accounts []account.Account, cursors map[string]string) (*Result, error) {
	if len(accounts) == 0 {
		if e.fallback == nil {
			return nil, &ConfigError{Reason: "no email accounts configured"}
		}
		e.logger.Info("no accounts supplied, using fallback account",
			logging.Operation("mailfeed.fetch_all"))
		accounts = []account.Account{*e.fallback}
	}

	start := time.Now()
	slots := make([]fetchSlot, len(accounts))

	var wg sync.WaitGroup
	for i, acct := range accounts {
		wg.Add(1)
		go func(i int, acct account.Account) {
			defer wg.Done()
			page, err := e.fetchAccount(ctx, acct, cursors[accountKey(acct)])
			slots[i] = fetchSlot{acct: acct, page: page, err: err}
		}(i, acct)
	}
	wg.Wait()

	result := &Result{Pagination: make(map[string]PageInfo)}
	for _, slot := range slots {
		logger := e.logger.With(
			logging.Provider(string(slot.acct.Provider)),
			logging.Account(slot.acct.Name()))

		if slot.err != nil {
			// Fail-soft: one broken mailbox never blocks the others.
			logger.Error("account fetch failed, returning empty result for account",
				logging.Err(slot.err))
			e.metrics.RecordFetch(ctx, string(slot.acct.Provider), instrumentation.ResultError, 0)
			continue
		}

		result.Messages = append(result.Messages, slot.page.Messages...)
		result.Pagination[accountKey(slot.acct)] = PageInfo{
			Cursor:  slot.page.NextCursor,
			HasMore: slot.page.NextCursor != "",
		}
		e.metrics.RecordFetch(ctx, string(slot.acct.Provider), instrumentation.ResultSuccess, len(slot.page.Messages))

		if tok := slot.page.Token; tok != nil && tok.Refreshed {
			e.persistToken(ctx, slot.acct, tok.AccessToken, tok.Expiry)
		}
	}

	// The one place ordering is imposed across provider streams.
	sort.SliceStable(result.Messages, func(i, j int) bool {
		return result.Messages[i].Date.After(result.Messages[j].Date)
	})

	e.logger.Info("aggregation complete",
		logging.Operation("mailfeed.fetch_all"),
		slog.Int("accounts", len(accounts)),
		slog.Int("messages", len(result.Messages)),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	return result, nil
}

// fetchAccount resolves the adapter for one account and fetches a page.
func (e *Engine) fetchAccount(ctx context.Context, acct account.Account, cursor string) (Page, error) {
	if err := acct.Validate(); err != nil {
		return Page{}, err
	}
	adapter, ok := e.adapters[acct.Provider]
	if !ok {
		return Page{}, fmt.Errorf("no adapter registered for provider %s", acct.Provider)
	}
	return adapter.FetchPage(ctx, acct, cursor)
}

// persistToken hands a refreshed token to the persister. Failures are
// logged and swallowed: losing the stored copy costs one extra refresh
// on the next fetch, nothing more.
func (e *Engine) persistToken(ctx context.Context, acct account.Account, accessToken string, expiry time.Time) {
	e.metrics.RecordTokenRefresh(ctx, string(acct.Provider), instrumentation.ResultSuccess)
	if e.persister == nil {
		return
	}
	update := account.TokenUpdate{AccessToken: accessToken, Expiry: expiry}
	if err := e.persister.PersistRefreshedToken(ctx, acct.Email, acct.ID, update); err != nil {
		e.logger.Error("persisting refreshed token failed",
			logging.Provider(string(acct.Provider)),
			logging.UserHash(acct.Email),
			logging.Err(err))
	}
}

// MarkRead marks one message as read through the account's adapter.
func (e *Engine) MarkRead(ctx context.Context, acct account.Account, providerMessageID string) error {
	adapter, ok := e.adapters[acct.Provider]
	if !ok {
		return fmt.Errorf("no adapter registered for provider %s", acct.Provider)
	}
	return adapter.MarkRead(ctx, acct, providerMessageID)
}
