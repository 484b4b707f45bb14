package memory

import (
	"context"
	"sort"
	"sync"

	"mnemosyne/internal/domain/session"
	"mnemosyne/pkg/errors"
)

// SessionRepository is the volatile session backend: nested in-process
// maps (app → user → session id) plus the shared app and user state
// layers, guarded by a single RWMutex. Everything is copied on the way in
// and out so callers never alias internal maps.
type SessionRepository struct {
	mu        sync.RWMutex
	sessions  map[string]map[string]map[string]*session.Session
	appState  map[string]map[string]any
	userState map[string]map[string]map[string]any
}

// NewSessionRepository creates an empty in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions:  make(map[string]map[string]map[string]*session.Session),
		appState:  make(map[string]map[string]any),
		userState: make(map[string]map[string]map[string]any),
	}
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, sess *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.sessions[sess.AppName]
	if !ok {
		users = make(map[string]map[string]*session.Session)
		r.sessions[sess.AppName] = users
	}
	byID, ok := users[sess.UserID]
	if !ok {
		byID = make(map[string]*session.Session)
		users[sess.UserID] = byID
	}
	if _, exists := byID[sess.SessionID]; exists {
		return errors.Wrap(errors.ErrAlreadyExists, "session already exists")
	}

	byID[sess.SessionID] = copySession(sess)
	return nil
}

// Get returns a copy of the session with its events, filtered by opts.
func (r *SessionRepository) Get(_ context.Context, appName, userID, sessionID string, opts *session.GetOptions) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.lookup(appName, userID, sessionID)
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "session not found")
	}

	sess := copySession(stored)
	sess.Events = session.FilterEvents(sess.Events, opts)
	return sess, nil
}

// List returns copies of all sessions for the (app, user) pair, most
// recently updated first, without events.
func (r *SessionRepository) List(_ context.Context, appName, userID string) ([]*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*session.Session
	for _, stored := range r.sessions[appName][userID] {
		sess := copySession(stored)
		sess.Events = []session.Event{}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].SessionID < sessions[j].SessionID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	return sessions, nil
}

// Delete removes the session and its events. Absent sessions are a no-op.
func (r *SessionRepository) Delete(_ context.Context, appName, userID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions[appName][userID], sessionID)
	return nil
}

// UpdateState replaces the session's own state layer.
func (r *SessionRepository) UpdateState(_ context.Context, appName, userID, sessionID string, state map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.lookup(appName, userID, sessionID)
	if !ok {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}

	stored.State = copyMap(state)
	return nil
}

// AppendEvent appends the event to the stored ledger and advances the
// session's update time.
func (r *SessionRepository) AppendEvent(_ context.Context, sess *session.Session, event *session.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.lookup(sess.AppName, sess.UserID, sess.SessionID)
	if !ok {
		return errors.Wrap(errors.ErrNotFound, "session not found")
	}

	stored.Events = append(stored.Events, *event)
	stored.UpdatedAt = event.Timestamp
	return nil
}

// GetAppState returns the shared app state layer.
func (r *SessionRepository) GetAppState(_ context.Context, appName string) (*session.AppState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.appState[appName]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "app state not found")
	}
	return &session.AppState{AppName: appName, State: copyMap(state)}, nil
}

// SetAppState replaces the shared app state layer.
func (r *SessionRepository) SetAppState(_ context.Context, appName string, state map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appState[appName] = copyMap(state)
	return nil
}

// GetUserState returns the shared user state layer.
func (r *SessionRepository) GetUserState(_ context.Context, appName, userID string) (*session.UserState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.userState[appName][userID]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "user state not found")
	}
	return &session.UserState{AppName: appName, UserID: userID, State: copyMap(state)}, nil
}

// SetUserState replaces the shared user state layer.
func (r *SessionRepository) SetUserState(_ context.Context, appName, userID string, state map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.userState[appName]
	if !ok {
		users = make(map[string]map[string]any)
		r.userState[appName] = users
	}
	users[userID] = copyMap(state)
	return nil
}

// lookup must be called with the mutex held.
func (r *SessionRepository) lookup(appName, userID, sessionID string) (*session.Session, bool) {
	sess, ok := r.sessions[appName][userID][sessionID]
	return sess, ok
}

func copySession(sess *session.Session) *session.Session {
	out := *sess
	out.State = copyMap(sess.State)
	out.Events = make([]session.Event, len(sess.Events))
	copy(out.Events, sess.Events)
	return &out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
