package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"mnemosyne/internal/domain/session"
	"mnemosyne/pkg/errors"
	"mnemosyne/pkg/logger"
)

// SessionRepository implements session.Repository using PostgreSQL.
type SessionRepository struct {
	db  DBTX
	log *logger.Logger

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewSessionRepository creates a new PostgreSQL session repository. The
// schema is ensured lazily on first use.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: logger.Get().With("component", "postgres_session_repository"),
	}
}

// Create creates a new session row.
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	query := `
		INSERT INTO sessions (id, app_name, user_id, session_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		sess.ID,
		sess.AppName,
		sess.UserID,
		sess.SessionID,
		stateJSON,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}

	return nil
}

// Get retrieves a session with optional event filtering.
func (r *SessionRepository) Get(ctx context.Context, appName, userID, sessionID string, opts *session.GetOptions) (*session.Session, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &session.GetOptions{}
	}

	query := `
		SELECT id, app_name, user_id, session_id, state, created_at, updated_at
		FROM sessions
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3
	`

	var sess session.Session
	var stateJSON []byte

	err := r.db.QueryRowContext(ctx, query, appName, userID, sessionID).Scan(
		&sess.ID,
		&sess.AppName,
		&sess.UserID,
		&sess.SessionID,
		&stateJSON,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "session not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}

	if err := json.Unmarshal(stateJSON, &sess.State); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal state")
	}

	events, err := r.getEvents(ctx, &sess, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}
	sess.Events = events

	return &sess, nil
}

// List lists all sessions for an app/user pair, most recently updated
// first. Events are not loaded.
func (r *SessionRepository) List(ctx context.Context, appName, userID string) ([]*session.Session, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, app_name, user_id, session_id, state, created_at, updated_at
		FROM sessions
		WHERE app_name = $1 AND user_id = $2
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, appName, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		var sess session.Session
		var stateJSON []byte

		err := rows.Scan(
			&sess.ID,
			&sess.AppName,
			&sess.UserID,
			&sess.SessionID,
			&stateJSON,
			&sess.CreatedAt,
			&sess.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}

		if err := json.Unmarshal(stateJSON, &sess.State); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal state")
		}

		sess.Events = []session.Event{}
		sessions = append(sessions, &sess)
	}

	return sessions, rows.Err()
}

// Delete deletes a session; its events go with it via the cascading
// foreign key. Deleting an absent session is a no-op.
func (r *SessionRepository) Delete(ctx context.Context, appName, userID, sessionID string) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	query := `
		DELETE FROM sessions
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3
	`

	if _, err := r.db.ExecContext(ctx, query, appName, userID, sessionID); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}

	return nil
}

// UpdateState replaces the session's own state layer.
func (r *SessionRepository) UpdateState(ctx context.Context, appName, userID, sessionID string, state map[string]any) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	query := `
		UPDATE sessions
		SET state = $1, updated_at = $2
		WHERE app_name = $3 AND user_id = $4 AND session_id = $5
	`

	result, err := r.db.ExecContext(ctx, query, stateJSON, time.Now(), appName, userID, sessionID)
	if err != nil {
		return errors.Wrap(err, "failed to update state")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}

	return nil
}

// AppendEvent inserts the event row and advances the session's update
// time.
func (r *SessionRepository) AppendEvent(ctx context.Context, sess *session.Session, event *session.Event) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	contentJSON, err := json.Marshal(event.Content)
	if err != nil {
		return errors.Wrap(err, "failed to marshal content")
	}
	actionsJSON, err := json.Marshal(event.Actions)
	if err != nil {
		return errors.Wrap(err, "failed to marshal actions")
	}
	toolIDsJSON, err := json.Marshal(event.LongRunningToolIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal long running tool ids")
	}

	query := `
		INSERT INTO events (
			session_uuid, event_id, invocation_id, author, branch,
			content, actions, long_running_tool_ids, partial, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		sess.ID,
		event.ID,
		event.InvocationID,
		event.Author,
		event.Branch,
		contentJSON,
		actionsJSON,
		toolIDsJSON,
		event.Partial,
		event.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append event")
	}

	touch := `UPDATE sessions SET updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, touch, event.Timestamp, sess.ID); err != nil {
		return errors.Wrap(err, "failed to touch session")
	}

	return nil
}

// getEvents loads the session's ledger in append order.
func (r *SessionRepository) getEvents(ctx context.Context, sess *session.Session, opts *session.GetOptions) ([]session.Event, error) {
	query := `
		SELECT event_id, invocation_id, author, branch, content, actions,
		       long_running_tool_ids, partial, timestamp
		FROM events
		WHERE session_uuid = $1
	`
	args := []interface{}{sess.ID}

	if !opts.After.IsZero() {
		query += ` AND timestamp >= $2`
		args = append(args, opts.After)
	}

	query += ` ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	events := []session.Event{}
	for rows.Next() {
		var event session.Event
		var contentJSON, actionsJSON, toolIDsJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.InvocationID,
			&event.Author,
			&event.Branch,
			&contentJSON,
			&actionsJSON,
			&toolIDsJSON,
			&event.Partial,
			&event.Timestamp,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}

		if len(contentJSON) > 0 {
			if err := json.Unmarshal(contentJSON, &event.Content); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal content")
			}
		}
		if err := json.Unmarshal(actionsJSON, &event.Actions); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal actions")
		}
		if err := json.Unmarshal(toolIDsJSON, &event.LongRunningToolIDs); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal long running tool ids")
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if opts.NumRecentEvents > 0 && len(events) > opts.NumRecentEvents {
		events = events[len(events)-opts.NumRecentEvents:]
	}

	return events, nil
}

// GetAppState returns the shared app state layer.
func (r *SessionRepository) GetAppState(ctx context.Context, appName string) (*session.AppState, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var stateJSON []byte
	query := `SELECT state FROM app_state WHERE app_name = $1`

	err := r.db.QueryRowContext(ctx, query, appName).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "app state not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get app state")
	}

	state := make(map[string]any)
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal app state")
	}

	return &session.AppState{AppName: appName, State: state}, nil
}

// SetAppState upserts the shared app state layer.
func (r *SessionRepository) SetAppState(ctx context.Context, appName string, state map[string]any) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal app state")
	}

	query := `
		INSERT INTO app_state (app_name, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (app_name) DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, appName, stateJSON); err != nil {
		return errors.Wrap(err, "failed to set app state")
	}

	return nil
}

// GetUserState returns the shared user state layer.
func (r *SessionRepository) GetUserState(ctx context.Context, appName, userID string) (*session.UserState, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var stateJSON []byte
	query := `SELECT state FROM user_state WHERE app_name = $1 AND user_id = $2`

	err := r.db.QueryRowContext(ctx, query, appName, userID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "user state not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user state")
	}

	state := make(map[string]any)
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal user state")
	}

	return &session.UserState{AppName: appName, UserID: userID, State: state}, nil
}

// SetUserState upserts the shared user state layer.
func (r *SessionRepository) SetUserState(ctx context.Context, appName, userID string, state map[string]any) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user state")
	}

	query := `
		INSERT INTO user_state (app_name, user_id, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (app_name, user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, appName, userID, stateJSON); err != nil {
		return errors.Wrap(err, "failed to set user state")
	}

	return nil
}
