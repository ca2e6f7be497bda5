package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/calfeed"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
)

// ConnectionProber verifies that an account's mail server is reachable.
type ConnectionProber interface {
	Probe(ctx context.Context, acct account.Account) error
}

// ServerContext holds the shared dependencies behind the HTTP surface
// and coordinates shutdown between the listeners.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	engine   *mailfeed.Engine
	calendar *calfeed.Fetcher
	accounts account.Store
	prober   ConnectionProber
	logger   *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context wired to the aggregation
// engine and its collaborators. The account store and prober may be nil
// when the deployment runs on inline accounts only.
func NewServerContext(ctx context.Context, engine *mailfeed.Engine, calendar *calfeed.Fetcher, accounts account.Store, prober ConnectionProber, logger *slog.Logger) *ServerContext {
	if logger == nil {
		logger = slog.Default()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		engine:   engine,
		calendar: calendar,
		accounts: accounts,
		prober:   prober,
		logger:   logger,
	}
}

// Context returns the server's shutdown-aware context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown marks the context as shut down and cancels in-flight work.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
