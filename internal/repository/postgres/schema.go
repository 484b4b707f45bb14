package postgres

import (
	"context"

	"mnemosyne/pkg/errors"
)

// Schema statements are create-if-absent so a schema-creation race between
// concurrent store instances is safe to retry.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS app_state (
		app_name   TEXT PRIMARY KEY,
		state      JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_state (
		app_name   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		state      JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (app_name, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         UUID PRIMARY KEY,
		app_name   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		state      JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (app_name, user_id, session_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		seq                   BIGSERIAL PRIMARY KEY,
		session_uuid          UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		event_id              TEXT NOT NULL,
		invocation_id         TEXT NOT NULL DEFAULT '',
		author                TEXT NOT NULL DEFAULT '',
		branch                TEXT NOT NULL DEFAULT '',
		content               JSONB,
		actions               JSONB NOT NULL DEFAULT '{}'::jsonb,
		long_running_tool_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
		partial               BOOLEAN NOT NULL DEFAULT false,
		timestamp             TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS events_session_seq_idx ON events (session_uuid, seq)`,
}

// ensureSchema creates the tables on first use. The DDL runs at most once
// per repository instance on success; a failure leaves the repository
// ready to retry on the next call.
func (r *SessionRepository) ensureSchema(ctx context.Context) error {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()

	if r.schemaReady {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to ensure schema")
		}
	}

	r.schemaReady = true
	return nil
}
