package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/sharedbox/sharedbox/internal/account"
)

// SQLiteStore implements account.Store on a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Get returns the account with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (account.Account, error) {
	row := s.db.QueryRowxContext(ctx, selectAccounts+" WHERE id = ?", id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("getting account %s: %w", id, err)
	}
	return acct, nil
}

// FindByEmail returns the account with the given email address.
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (account.Account, error) {
	row := s.db.QueryRowxContext(ctx, selectAccounts+" WHERE email = ?", email)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("finding account for %s: %w", email, err)
	}
	return acct, nil
}

// List returns all stored accounts ordered by email.
func (s *SQLiteStore) List(ctx context.Context) ([]account.Account, error) {
	rows, err := s.db.QueryxContext(ctx, selectAccounts+" ORDER BY email, id")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}

// UpdateToken persists a refreshed access token for the account
// identified by (email, id).
func (s *SQLiteStore) UpdateToken(ctx context.Context, email, id string, update account.TokenUpdate) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET access_token = ?, token_expiry = ?, updated_at = ?
		WHERE email = ? AND id = ?`,
		update.AccessToken, update.Expiry.UTC(), time.Now().UTC(),
		email, id,
	)
	if err != nil {
		return fmt.Errorf("updating token for account %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating token for account %s: %w", id, err)
	}
	if rows == 0 {
		return account.ErrNotFound
	}
	return nil
}

// Upsert inserts or replaces an account. Generates a UUID if ID is
// empty. Accounts normally arrive through the authorization service;
// this exists for seeding and tests.
func (s *SQLiteStore) Upsert(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if err := acct.Validate(); err != nil {
		return account.Account{}, err
	}

	var (
		host, user, password string
		port                 int
		useTLS               int
		accessToken, refresh string
		handle, scope        string
		expiry               time.Time
	)
	if acct.IMAP != nil {
		host = acct.IMAP.Host
		port = acct.IMAP.Port
		user = acct.IMAP.User
		password = acct.IMAP.Password
		useTLS = boolToInt(acct.IMAP.UseTLS)
	}
	if acct.OAuth != nil {
		accessToken = acct.OAuth.AccessToken
		refresh = acct.OAuth.RefreshToken
		handle = acct.OAuth.AccountHandle
		scope = acct.OAuth.Scope
		expiry = acct.OAuth.Expiry.UTC()
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (
			id, email, provider, display_name,
			imap_host, imap_port, imap_user, imap_password, imap_use_tls,
			access_token, refresh_token, account_handle, scope, token_expiry,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Email, string(acct.Provider), acct.DisplayName,
		host, port, user, password, useTLS,
		accessToken, refresh, handle, scope, expiry,
		now, now,
	)
	if err != nil {
		return account.Account{}, fmt.Errorf("upserting account %s: %w", acct.ID, err)
	}

	return acct, nil
}

const selectAccounts = `
	SELECT id, email, provider, display_name,
		imap_host, imap_port, imap_user, imap_password, imap_use_tls,
		access_token, refresh_token, account_handle, scope, token_expiry
	FROM accounts`

// rowScanner covers both sqlx.Row and sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (account.Account, error) {
	var (
		acct                 account.Account
		provider             string
		host, user, password string
		port, useTLS         int
		accessToken, refresh string
		handle, scope        string
		expiry               time.Time
	)

	err := row.Scan(
		&acct.ID, &acct.Email, &provider, &acct.DisplayName,
		&host, &port, &user, &password, &useTLS,
		&accessToken, &refresh, &handle, &scope, &expiry,
	)
	if err != nil {
		return account.Account{}, err
	}

	acct.Provider = account.Provider(provider)
	if acct.Provider == account.ProviderIMAP {
		acct.IMAP = &account.IMAPCredentials{
			Host:     host,
			Port:     port,
			User:     user,
			Password: password,
			UseTLS:   useTLS != 0,
		}
	} else {
		acct.OAuth = &account.OAuthCredentials{
			AccessToken:   accessToken,
			RefreshToken:  refresh,
			AccountHandle: handle,
			Scope:         scope,
			Expiry:        expiry,
		}
	}

	return acct, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
