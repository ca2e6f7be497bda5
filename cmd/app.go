package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/calfeed"
	"github.com/sharedbox/sharedbox/internal/config"
	"github.com/sharedbox/sharedbox/internal/gmailfeed"
	"github.com/sharedbox/sharedbox/internal/graphmail"
	"github.com/sharedbox/sharedbox/internal/imapmail"
	"github.com/sharedbox/sharedbox/internal/instrumentation"
	"github.com/sharedbox/sharedbox/internal/logging"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
	"github.com/sharedbox/sharedbox/internal/store"
	"github.com/sharedbox/sharedbox/internal/token"
)

// application bundles the assembled dependencies shared by the serve and
// fetch commands.
type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLiteStore
	engine   *mailfeed.Engine
	calendar *calfeed.Fetcher
	prober   *imapmail.Adapter
	provider *instrumentation.Provider
}

// storePersister feeds refreshed OAuth tokens back into the account
// store so restarts pick up the newest access token.
type storePersister struct {
	store account.Store
}

func (p *storePersister) PersistRefreshedToken(ctx context.Context, email, accountID string, update account.TokenUpdate) error {
	return p.store.UpdateToken(ctx, email, accountID, update)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildApplication loads configuration and assembles the store, token
// manager, adapters, engine and calendar fetcher.
func buildApplication(ctx context.Context, configPath string, debug bool, metricsEnabled bool) (*application, error) {
	logger := newLogger(debug)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:    "sharedbox",
		ServiceVersion: version,
		Enabled:        metricsEnabled,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := provider.Metrics()

	msCache := token.NewMemoryCache()
	seedMicrosoftCache(ctx, st, msCache, logger)

	tokens := token.NewManager(token.GoogleApp{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
	}, msCache, logger)

	fallback, err := cfg.FallbackAccount()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	imapAdapter := imapmail.NewAdapter(logger, metrics)
	engine := mailfeed.NewEngine(mailfeed.Config{
		Adapters: []mailfeed.Adapter{
			imapAdapter,
			gmailfeed.NewAdapter(tokens, logger, metrics),
			graphmail.NewAdapter(tokens, logger, metrics),
		},
		Persister: &storePersister{store: st},
		Fallback:  fallback,
		Logger:    logger,
		Metrics:   metrics,
	})

	return &application{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		engine:   engine,
		calendar: calfeed.NewFetcher(tokens, logger, metrics),
		prober:   imapAdapter,
		provider: provider,
	}, nil
}

// seedMicrosoftCache loads the stored Microsoft accounts' refresh
// credentials into the in-process cache keyed by account handle. Without
// a seeded credential a Microsoft account cannot refresh until the user
// re-authorizes.
func seedMicrosoftCache(ctx context.Context, st account.Store, cache *token.MemoryCache, logger *slog.Logger) {
	accounts, err := st.List(ctx)
	if err != nil {
		logger.Warn("listing accounts for credential cache failed", logging.Err(err))
		return
	}
	for _, acct := range accounts {
		if acct.Provider != account.ProviderMicrosoft || acct.OAuth == nil {
			continue
		}
		if acct.OAuth.AccountHandle == "" || acct.OAuth.RefreshToken == "" {
			continue
		}
		cache.Put(acct.OAuth.AccountHandle, acct.OAuth.RefreshToken)
	}
}

func (a *application) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing account store failed", logging.Err(err))
	}
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Error("instrumentation shutdown failed", logging.Err(err))
	}
}
