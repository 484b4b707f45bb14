package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mnemosyne/internal/metrics"
	"mnemosyne/pkg/errors"
	"mnemosyne/pkg/logger"
)

// Service is the session store: it owns scope routing, state merging and
// the append critical section, delegating raw storage to a Repository.
// Running the same Service logic over every backend is what keeps the
// backends behaviorally identical.
type Service struct {
	repo Repository
	log  *logger.Logger

	// sessionLocks serializes the route-deltas/append/update-time sequence
	// per session; scopeLocks serializes shared-layer read-modify-write
	// cycles per app and per (app, user).
	sessionLocks *keyedMutex
	scopeLocks   *keyedMutex
}

// NewService creates a session service over the given backend.
func NewService(repo Repository) *Service {
	return &Service{
		repo:         repo,
		log:          logger.Get().With("component", "session_service"),
		sessionLocks: newKeyedMutex(),
		scopeLocks:   newKeyedMutex(),
	}
}

// CreateSession allocates a session. A missing sessionID is generated.
// App- and user-scoped keys in initialState are routed to the shared
// layers; temp-scoped keys are dropped. The returned session carries the
// merged state view.
func (s *Service) CreateSession(ctx context.Context, appName, userID, sessionID string, initialState map[string]any) (*Session, error) {
	start := time.Now()

	if appName == "" || userID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name and user_id are required")
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	appDelta, userDelta, sessionState := SplitDelta(initialState)

	if len(appDelta) > 0 {
		if err := s.commitAppDelta(ctx, appName, appDelta); err != nil {
			return nil, s.observe("create", start, errors.Wrap(err, "failed to update app state"))
		}
	}
	if len(userDelta) > 0 {
		if err := s.commitUserDelta(ctx, appName, userID, userDelta); err != nil {
			return nil, s.observe("create", start, errors.Wrap(err, "failed to update user state"))
		}
	}

	now := time.Now()
	sess := &Session{
		ID:        uuid.New(),
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		State:     sessionState,
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, s.observe("create", start, errors.Wrap(err, "failed to create session"))
	}

	if err := s.mergeStateView(ctx, sess); err != nil {
		return nil, s.observe("create", start, err)
	}

	s.log.Infof("Created session: app=%s user=%s session=%s", appName, userID, sessionID)
	return sess, s.observe("create", start, nil)
}

// GetSession returns the session with its merged state view, or an
// ErrNotFound-wrapped error when absent.
func (s *Service) GetSession(ctx context.Context, appName, userID, sessionID string, opts *GetOptions) (*Session, error) {
	start := time.Now()

	if appName == "" || userID == "" || sessionID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and session_id are required")
	}

	sess, err := s.repo.Get(ctx, appName, userID, sessionID, opts)
	if err != nil {
		return nil, s.observe("get", start, err)
	}

	if err := s.mergeStateView(ctx, sess); err != nil {
		return nil, s.observe("get", start, err)
	}

	return sess, s.observe("get", start, nil)
}

// ListSessions returns all sessions for an (app, user) pair, most recently
// updated first, with merged state views and no events loaded.
func (s *Service) ListSessions(ctx context.Context, appName, userID string) ([]*Session, error) {
	start := time.Now()

	if appName == "" || userID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name and user_id are required")
	}

	sessions, err := s.repo.List(ctx, appName, userID)
	if err != nil {
		return nil, s.observe("list", start, errors.Wrap(err, "failed to list sessions"))
	}

	for _, sess := range sessions {
		if err := s.mergeStateView(ctx, sess); err != nil {
			s.log.Warnf("Failed to merge states for session %s: %v", sess.SessionID, err)
		}
	}

	return sessions, s.observe("list", start, nil)
}

// DeleteSession removes a session and its events. Deleting an absent
// session is not an error.
func (s *Service) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	start := time.Now()

	if appName == "" || userID == "" || sessionID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and session_id are required")
	}

	if err := s.repo.Delete(ctx, appName, userID, sessionID); err != nil {
		return s.observe("delete", start, errors.Wrap(err, "failed to delete session"))
	}

	s.log.Infof("Deleted session: app=%s user=%s session=%s", appName, userID, sessionID)
	return s.observe("delete", start, nil)
}

// AppendEvent commits an event to the session: non-ephemeral state deltas
// are routed to their scope layers, the event is appended to the ledger
// and the session's update time advances, all within one per-session
// critical section. A partial event is returned untouched and never
// stored. The stored event is returned.
func (s *Service) AppendEvent(ctx context.Context, sess *Session, event *Event) (*Event, error) {
	start := time.Now()

	if sess == nil || event == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "session and event are required")
	}
	if event.Partial {
		return event, nil
	}

	*event = NewEvent(*event)

	unlock := s.sessionLocks.Lock(sessionKey(sess.AppName, sess.UserID, sess.SessionID))
	defer unlock()

	appDelta, userDelta, sessionDelta := SplitDelta(event.Actions.StateDelta)

	if len(appDelta) > 0 {
		if err := s.commitAppDelta(ctx, sess.AppName, appDelta); err != nil {
			return nil, s.observe("append_event", start, errors.Wrap(err, "failed to update app state"))
		}
		for k, v := range appDelta {
			sess.State[KeyPrefixApp+k] = v
		}
	}

	if len(userDelta) > 0 {
		if err := s.commitUserDelta(ctx, sess.AppName, sess.UserID, userDelta); err != nil {
			return nil, s.observe("append_event", start, errors.Wrap(err, "failed to update user state"))
		}
		for k, v := range userDelta {
			sess.State[KeyPrefixUser+k] = v
		}
	}

	if len(sessionDelta) > 0 {
		for k, v := range sessionDelta {
			sess.State[k] = v
		}
		if err := s.repo.UpdateState(ctx, sess.AppName, sess.UserID, sess.SessionID, SessionScopeOnly(sess.State)); err != nil {
			return nil, s.observe("append_event", start, errors.Wrap(err, "failed to update session state"))
		}
	}

	if err := s.repo.AppendEvent(ctx, sess, event); err != nil {
		return nil, s.observe("append_event", start, errors.Wrap(err, "failed to append event"))
	}

	sess.Events = append(sess.Events, *event)
	sess.UpdatedAt = time.Now()

	metrics.RecordEventAppended("session")
	return event, s.observe("append_event", start, nil)
}

// mergeStateView replaces the session's state with the app ∪ user ∪
// session merged view. Absent shared layers are treated as empty.
func (s *Service) mergeStateView(ctx context.Context, sess *Session) error {
	appState, err := s.repo.GetAppState(ctx, sess.AppName)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return errors.Wrap(err, "failed to get app state")
	}
	userState, err := s.repo.GetUserState(ctx, sess.AppName, sess.UserID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return errors.Wrap(err, "failed to get user state")
	}

	var appMap, userMap map[string]any
	if appState != nil {
		appMap = appState.State
	}
	if userState != nil {
		userMap = userState.State
	}

	sess.State = MergeScopes(appMap, userMap, SessionScopeOnly(sess.State))
	return nil
}

// commitAppDelta merges a delta into the shared app layer under the app's
// scope lock. The layer is out-of-band shared state, not a copy: writes
// are visible to every session of the app opened afterwards.
func (s *Service) commitAppDelta(ctx context.Context, appName string, delta map[string]any) error {
	unlock := s.scopeLocks.Lock("app/" + appName)
	defer unlock()

	appState, err := s.repo.GetAppState(ctx, appName)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	if appState == nil {
		appState = &AppState{AppName: appName, State: make(map[string]any)}
	}

	for k, v := range delta {
		appState.State[k] = v
	}

	return s.repo.SetAppState(ctx, appName, appState.State)
}

// commitUserDelta merges a delta into the shared user layer under the
// (app, user) scope lock.
func (s *Service) commitUserDelta(ctx context.Context, appName, userID string, delta map[string]any) error {
	unlock := s.scopeLocks.Lock("user/" + appName + "/" + userID)
	defer unlock()

	userState, err := s.repo.GetUserState(ctx, appName, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	if userState == nil {
		userState = &UserState{AppName: appName, UserID: userID, State: make(map[string]any)}
	}

	for k, v := range delta {
		userState.State[k] = v
	}

	return s.repo.SetUserState(ctx, appName, userID, userState.State)
}

func (s *Service) observe(operation string, start time.Time, err error) error {
	metrics.ObserveStoreOperation("session", operation, start, err)
	return err
}

func sessionKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("%s/%s/%s", appName, userID, sessionID)
}
