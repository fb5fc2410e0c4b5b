package sql

import (
	"context"
	"fmt"
)

// schema is one CREATE TABLE statement per model, written once against
// Postgres types and translated to SQLite-compatible types by
// translateSQLite, the way the teacher's migrate.go keeps a single
// ordered statement list and sqlite.go only swaps the driver.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		email_verified BOOLEAN NOT NULL DEFAULT false,
		role TEXT NOT NULL DEFAULT '',
		banned BOOLEAN NOT NULL DEFAULT false,
		ban_expires TIMESTAMPTZ,
		phone_number TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		two_factor_enabled BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_provider_account_idx ON accounts (provider_id, account_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		impersonated_by TEXT NOT NULL DEFAULT '',
		active_organization_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS verifications (
		id TEXT PRIMARY KEY,
		identifier TEXT NOT NULL UNIQUE,
		value TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS verifications_expires_at_idx ON verifications (expires_at)`,
	`CREATE TABLE IF NOT EXISTS two_factors (
		user_id TEXT PRIMARY KEY,
		secret_encrypted TEXT NOT NULL,
		backup_codes_encrypted TEXT NOT NULL DEFAULT '',
		period INTEGER NOT NULL DEFAULT 30,
		digits INTEGER NOT NULL DEFAULT 6
	)`,
	`CREATE TABLE IF NOT EXISTS trusted_devices (
		device_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_clients (
		client_id TEXT PRIMARY KEY,
		client_secret TEXT NOT NULL DEFAULT '',
		redirect_uris TEXT NOT NULL DEFAULT '[]',
		scopes TEXT NOT NULL DEFAULT '[]',
		public BOOLEAN NOT NULL DEFAULT false,
		skip_consent BOOLEAN NOT NULL DEFAULT false,
		token_endpoint_auth_method TEXT NOT NULL DEFAULT '',
		grant_types TEXT NOT NULL DEFAULT '[]',
		response_types TEXT NOT NULL DEFAULT '[]',
		disabled BOOLEAN NOT NULL DEFAULT false,
		metadata TEXT NOT NULL DEFAULT '',
		reference_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_access_tokens (
		token TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		scopes TEXT NOT NULL DEFAULT '[]',
		expires_at TIMESTAMPTZ NOT NULL,
		refresh_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS oauth_access_tokens_expires_at_idx ON oauth_access_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS oauth_refresh_tokens (
		token TEXT PRIMARY KEY,
		chain_id TEXT NOT NULL,
		predecessor_id TEXT NOT NULL DEFAULT '',
		client_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		scopes TEXT NOT NULL DEFAULT '[]',
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS oauth_refresh_tokens_chain_id_idx ON oauth_refresh_tokens (chain_id)`,
	`CREATE INDEX IF NOT EXISTS oauth_refresh_tokens_expires_at_idx ON oauth_refresh_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS oauth_consents (
		client_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '[]',
		reference_id TEXT NOT NULL DEFAULT '',
		consent_given BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (client_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS device_codes (
		device_code TEXT PRIMARY KEY,
		user_code TEXT NOT NULL UNIQUE,
		client_id TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '[]',
		user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		expires_at TIMESTAMPTZ NOT NULL,
		last_polled_at TIMESTAMPTZ,
		polling_interval INTEGER NOT NULL DEFAULT 5,
		pkce_challenge TEXT NOT NULL DEFAULT '',
		pkce_method TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS device_codes_expires_at_idx ON device_codes (expires_at)`,
	`CREATE TABLE IF NOT EXISTS ciba_requests (
		auth_req_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		login_hint TEXT NOT NULL DEFAULT '',
		scopes TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		expires_at TIMESTAMPTZ NOT NULL,
		last_polled_at TIMESTAMPTZ,
		polling_interval INTEGER NOT NULL DEFAULT 5,
		binding_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS ciba_requests_expires_at_idx ON ciba_requests (expires_at)`,
}

// Migrate creates every table this adapter needs if it doesn't already
// exist. It has no version tracking, unlike the teacher's numbered
// migrations table: the schema here is fixed at one version per
// release rather than incrementally evolved in place.
func (a *Adapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		translated := stmt
		if a.dialect == DialectSQLite3 {
			translated = translateSQLite(stmt)
		}
		if _, err := a.db.ExecContext(ctx, translated); err != nil {
			return fmt.Errorf("sql: migrate: %w", err)
		}
	}
	return nil
}
