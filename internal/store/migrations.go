package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL,
	provider       TEXT NOT NULL,
	display_name   TEXT NOT NULL DEFAULT '',
	imap_host      TEXT NOT NULL DEFAULT '',
	imap_port      INTEGER NOT NULL DEFAULT 0,
	imap_user      TEXT NOT NULL DEFAULT '',
	imap_password  TEXT NOT NULL DEFAULT '',
	imap_use_tls   INTEGER NOT NULL DEFAULT 1,
	access_token   TEXT NOT NULL DEFAULT '',
	refresh_token  TEXT NOT NULL DEFAULT '',
	account_handle TEXT NOT NULL DEFAULT '',
	scope          TEXT NOT NULL DEFAULT '',
	token_expiry   DATETIME NOT NULL DEFAULT '0001-01-01 00:00:00',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
