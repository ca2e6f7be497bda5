package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/store"
	"github.com/sharedbox/sharedbox/internal/token"
)

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		expected string
	}{
		{name: "flag wins", values: []string{":9000", ":8080"}, expected: ":9000"},
		{name: "falls back to config", values: []string{"", ":8080"}, expected: ":8080"},
		{name: "all empty", values: []string{"", ""}, expected: ""},
		{name: "no values", values: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, firstNonEmpty(tt.values...))
		})
	}
}

func TestBuildApplication(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "sharedbox.db")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"database_path: "+dbPath+"\ngoogle:\n  client_id: cid\n  client_secret: secret\n"), 0o600))

	app, err := buildApplication(context.Background(), configPath, false, false)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })

	assert.Equal(t, dbPath, app.cfg.DatabasePath)
	assert.NotNil(t, app.engine)
	assert.NotNil(t, app.calendar)
	assert.NotNil(t, app.prober)
	assert.False(t, app.provider.Enabled())
}

func TestBuildApplicationIncompleteFallback(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"database_path: "+filepath.Join(dir, "sharedbox.db")+"\nfallback_imap:\n  host: mail.example.com\n"), 0o600))

	_, err := buildApplication(context.Background(), configPath, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback IMAP account incomplete")
}

func TestSeedMicrosoftCache(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "sharedbox.db")
	require.NoError(t, os.WriteFile(configPath, []byte("database_path: "+dbPath+"\n"), 0o600))

	app, err := buildApplication(context.Background(), configPath, false, false)
	require.NoError(t, err)

	_, err = app.store.Upsert(context.Background(), account.Account{
		ID:       "ms-1",
		Provider: account.ProviderMicrosoft,
		Email:    "jane@outlook.com",
		OAuth: &account.OAuthCredentials{
			AccessToken:   "tok",
			RefreshToken:  "refresh-cred",
			AccountHandle: "handle-1",
		},
	})
	require.NoError(t, err)
	_, err = app.store.Upsert(context.Background(), account.Account{
		ID:       "ms-2",
		Provider: account.ProviderMicrosoft,
		Email:    "nohandle@outlook.com",
		OAuth:    &account.OAuthCredentials{AccessToken: "tok"},
	})
	require.NoError(t, err)
	app.Close(context.Background())

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cache := token.NewMemoryCache()
	seedMicrosoftCache(context.Background(), st, cache, slog.New(slog.DiscardHandler))

	cred, ok := cache.RefreshCredential("handle-1")
	assert.True(t, ok)
	assert.Equal(t, "refresh-cred", cred)

	_, ok = cache.RefreshCredential("")
	assert.False(t, ok)
}
