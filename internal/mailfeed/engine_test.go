package mailfeed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeAdapter serves canned pages keyed by account email.
type fakeAdapter struct {
	provider account.Provider

	mu      sync.Mutex
	pages   map[string]Page
	errs    map[string]error
	cursors map[string]string
	marked  []string
}

func newFakeAdapter(provider account.Provider) *fakeAdapter {
	return &fakeAdapter{
		provider: provider,
		pages:    make(map[string]Page),
		errs:     make(map[string]error),
		cursors:  make(map[string]string),
	}
}

func (f *fakeAdapter) Provider() account.Provider { return f.provider }

func (f *fakeAdapter) FetchPage(_ context.Context, acct account.Account, cursor string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[acct.Email] = cursor
	if err := f.errs[acct.Email]; err != nil {
		return Page{}, err
	}
	return f.pages[acct.Email], nil
}

func (f *fakeAdapter) MarkRead(_ context.Context, acct account.Account, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, acct.Email+"/"+id)
	return nil
}

// recordingPersister captures token write-backs.
type recordingPersister struct {
	mu      sync.Mutex
	updates map[string]account.TokenUpdate
	err     error
}

func (p *recordingPersister) PersistRefreshedToken(_ context.Context, email, id string, update account.TokenUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updates == nil {
		p.updates = make(map[string]account.TokenUpdate)
	}
	p.updates[email+"/"+id] = update
	return p.err
}

func imapAcct(email string) account.Account {
	return account.Account{
		ID:       "id-" + email,
		Provider: account.ProviderIMAP,
		Email:    email,
		IMAP:     &account.IMAPCredentials{Host: "mail.lab.example", Port: 993, User: "u", Password: "p", UseTLS: true},
	}
}

func oauthAcct(provider account.Provider, email string) account.Account {
	return account.Account{
		ID:       "id-" + email,
		Provider: provider,
		Email:    email,
		OAuth:    &account.OAuthCredentials{AccessToken: "tok", RefreshToken: "r"},
	}
}

func msg(id string, date time.Time) Message {
	return Message{ID: id, Date: date, Subject: "s", From: "f"}
}

func TestFetchAllNoAccountsNoFallback(t *testing.T) {
	engine := NewEngine(Config{Logger: testLogger()})

	_, err := engine.FetchAll(context.Background(), nil, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "no email accounts configured")
}

func TestFetchAllUsesFallback(t *testing.T) {
	adapter := newFakeAdapter(account.ProviderIMAP)
	fallback := imapAcct("fallback@lab.example")
	adapter.pages["fallback@lab.example"] = Page{
		Messages: []Message{msg("m1", time.Now())},
	}

	engine := NewEngine(Config{
		Adapters: []Adapter{adapter},
		Fallback: &fallback,
		Logger:   testLogger(),
	})

	result, err := engine.FetchAll(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "m1", result.Messages[0].ID)
}

func TestFetchAllMergesAndSortsDescending(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	imap := newFakeAdapter(account.ProviderIMAP)
	imap.pages["a@lab.example"] = Page{Messages: []Message{
		msg("imap-old", base.Add(-2*time.Hour)),
		msg("imap-new", base.Add(3*time.Hour)),
	}}

	gmail := newFakeAdapter(account.ProviderGmail)
	gmail.pages["b@gmail.com"] = Page{
		Messages:   []Message{msg("gmail-mid", base)},
		NextCursor: "gmail-cursor",
	}

	engine := NewEngine(Config{
		Adapters: []Adapter{imap, gmail},
		Logger:   testLogger(),
	})

	result, err := engine.FetchAll(context.Background(),
		[]account.Account{imapAcct("a@lab.example"), oauthAcct(account.ProviderGmail, "b@gmail.com")}, nil)
	require.NoError(t, err)

	require.Len(t, result.Messages, 3)
	assert.Equal(t, "imap-new", result.Messages[0].ID)
	assert.Equal(t, "gmail-mid", result.Messages[1].ID)
	assert.Equal(t, "imap-old", result.Messages[2].ID)

	assert.Equal(t, PageInfo{Cursor: "", HasMore: false}, result.Pagination["a@lab.example"])
	assert.Equal(t, PageInfo{Cursor: "gmail-cursor", HasMore: true}, result.Pagination["b@gmail.com"])
}

func TestFetchAllFailSoft(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	imap := newFakeAdapter(account.ProviderIMAP)
	imap.errs["slow@lab.example"] = &TimeoutError{Op: "imap connect", After: ConnectTimeout}

	gmail := newFakeAdapter(account.ProviderGmail)
	gmail.pages["b@gmail.com"] = Page{Messages: []Message{msg("g1", base), msg("g2", base.Add(time.Minute))}}

	graph := newFakeAdapter(account.ProviderMicrosoft)
	graph.pages["c@outlook.com"] = Page{
		Messages:   []Message{msg("ms1", base.Add(time.Hour))},
		NextCursor: "nextlink",
	}

	engine := NewEngine(Config{
		Adapters: []Adapter{imap, gmail, graph},
		Logger:   testLogger(),
	})

	result, err := engine.FetchAll(context.Background(), []account.Account{
		imapAcct("slow@lab.example"),
		oauthAcct(account.ProviderGmail, "b@gmail.com"),
		oauthAcct(account.ProviderMicrosoft, "c@outlook.com"),
	}, nil)
	require.NoError(t, err, "one timed-out account must not fail the call")

	assert.Len(t, result.Messages, 3)
	assert.Len(t, result.Pagination, 2, "failed account contributes no pagination entry")
	assert.NotContains(t, result.Pagination, "slow@lab.example")
}

func TestFetchAllPassesCursors(t *testing.T) {
	gmail := newFakeAdapter(account.ProviderGmail)
	gmail.pages["b@gmail.com"] = Page{}

	engine := NewEngine(Config{Adapters: []Adapter{gmail}, Logger: testLogger()})

	_, err := engine.FetchAll(context.Background(),
		[]account.Account{oauthAcct(account.ProviderGmail, "b@gmail.com")},
		map[string]string{"b@gmail.com": "cursor-7"})
	require.NoError(t, err)
	assert.Equal(t, "cursor-7", gmail.cursors["b@gmail.com"])
}

func TestFetchAllPersistsRefreshedTokens(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)

	gmail := newFakeAdapter(account.ProviderGmail)
	gmail.pages["b@gmail.com"] = Page{
		Token: &token.Outcome{AccessToken: "fresh", Expiry: expiry, Refreshed: true},
	}
	graph := newFakeAdapter(account.ProviderMicrosoft)
	graph.pages["c@outlook.com"] = Page{
		Token: &token.Outcome{AccessToken: "stale", Refreshed: false},
	}

	persister := &recordingPersister{}
	engine := NewEngine(Config{
		Adapters:  []Adapter{gmail, graph},
		Persister: persister,
		Logger:    testLogger(),
	})

	_, err := engine.FetchAll(context.Background(), []account.Account{
		oauthAcct(account.ProviderGmail, "b@gmail.com"),
		oauthAcct(account.ProviderMicrosoft, "c@outlook.com"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, persister.updates, 1, "only refreshed tokens are persisted")
	update := persister.updates["b@gmail.com/id-b@gmail.com"]
	assert.Equal(t, "fresh", update.AccessToken)
	assert.True(t, expiry.Equal(update.Expiry))
}

func TestFetchAllPersisterFailureIsSwallowed(t *testing.T) {
	gmail := newFakeAdapter(account.ProviderGmail)
	gmail.pages["b@gmail.com"] = Page{
		Messages: []Message{msg("g1", time.Now())},
		Token:    &token.Outcome{AccessToken: "fresh", Refreshed: true},
	}

	persister := &recordingPersister{err: errors.New("store down")}
	engine := NewEngine(Config{
		Adapters:  []Adapter{gmail},
		Persister: persister,
		Logger:    testLogger(),
	})

	result, err := engine.FetchAll(context.Background(),
		[]account.Account{oauthAcct(account.ProviderGmail, "b@gmail.com")}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Messages, 1, "persistence failure never loses the fetch")
}

func TestFetchAllInvalidAccountFailsSoft(t *testing.T) {
	gmail := newFakeAdapter(account.ProviderGmail)
	gmail.pages["b@gmail.com"] = Page{Messages: []Message{msg("g1", time.Now())}}

	engine := NewEngine(Config{Adapters: []Adapter{gmail}, Logger: testLogger()})

	broken := account.Account{Provider: account.ProviderGmail, Email: "broken@gmail.com"}
	result, err := engine.FetchAll(context.Background(),
		[]account.Account{broken, oauthAcct(account.ProviderGmail, "b@gmail.com")}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Messages, 1)
	assert.NotContains(t, result.Pagination, "broken@gmail.com")
}

func TestMarkReadDispatchesByProvider(t *testing.T) {
	gmail := newFakeAdapter(account.ProviderGmail)
	engine := NewEngine(Config{Adapters: []Adapter{gmail}, Logger: testLogger()})

	err := engine.MarkRead(context.Background(), oauthAcct(account.ProviderGmail, "b@gmail.com"), "m9")
	require.NoError(t, err)
	assert.Equal(t, []string{"b@gmail.com/m9"}, gmail.marked)

	err = engine.MarkRead(context.Background(), imapAcct("a@lab.example"), "m1")
	require.Error(t, err, "no adapter registered for imap in this engine")
}
