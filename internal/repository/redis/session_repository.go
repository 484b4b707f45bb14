package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"mnemosyne/internal/domain/session"
	"mnemosyne/pkg/errors"
	"mnemosyne/pkg/logger"
)

const keyPrefix = "mnemosyne"

// SessionRepository implements session.Repository over Redis: a JSON
// document per session, a list per event ledger and one hash per shared
// state layer (field per state key, JSON-encoded value).
type SessionRepository struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewSessionRepository creates a Redis-backed session repository.
func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{
		rdb: rdb,
		log: logger.Get().With("component", "redis_session_repository"),
	}
}

func sessionKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("%s:session:%s:%s:%s", keyPrefix, appName, userID, sessionID)
}

func eventsKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("%s:events:%s:%s:%s", keyPrefix, appName, userID, sessionID)
}

func indexKey(appName, userID string) string {
	return fmt.Sprintf("%s:sessions:%s:%s", keyPrefix, appName, userID)
}

func appStateKey(appName string) string {
	return fmt.Sprintf("%s:app_state:%s", keyPrefix, appName)
}

func userStateKey(appName, userID string) string {
	return fmt.Sprintf("%s:user_state:%s:%s", keyPrefix, appName, userID)
}

// Create stores the session document and registers it in the (app, user)
// index set.
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}

	key := sessionKey(sess.AppName, sess.UserID, sess.SessionID)
	ok, err := r.rdb.SetNX(ctx, key, doc, 0).Result()
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	if !ok {
		return errors.Wrap(errors.ErrAlreadyExists, "session already exists")
	}

	if err := r.rdb.SAdd(ctx, indexKey(sess.AppName, sess.UserID), sess.SessionID).Err(); err != nil {
		return errors.Wrap(err, "failed to index session")
	}

	return nil
}

// Get loads the session document and its event ledger.
func (r *SessionRepository) Get(ctx context.Context, appName, userID, sessionID string, opts *session.GetOptions) (*session.Session, error) {
	sess, err := r.getSessionDoc(ctx, appName, userID, sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := r.rdb.LRange(ctx, eventsKey(appName, userID, sessionID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events")
	}

	events := make([]session.Event, 0, len(raw))
	for _, item := range raw {
		var ev session.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal event")
		}
		events = append(events, ev)
	}

	sess.Events = session.FilterEvents(events, opts)
	return sess, nil
}

// List loads all indexed sessions for the (app, user) pair, most recently
// updated first, without events. Index entries whose document has gone
// missing are skipped.
func (r *SessionRepository) List(ctx context.Context, appName, userID string) ([]*session.Session, error) {
	ids, err := r.rdb.SMembers(ctx, indexKey(appName, userID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read session index")
	}

	var sessions []*session.Session
	for _, id := range ids {
		sess, err := r.getSessionDoc(ctx, appName, userID, id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
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

// Delete removes the session document, its ledger and its index entry.
// Absent sessions are a no-op.
func (r *SessionRepository) Delete(ctx context.Context, appName, userID, sessionID string) error {
	keys := []string{
		sessionKey(appName, userID, sessionID),
		eventsKey(appName, userID, sessionID),
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	if err := r.rdb.SRem(ctx, indexKey(appName, userID), sessionID).Err(); err != nil {
		return errors.Wrap(err, "failed to deindex session")
	}
	return nil
}

// UpdateState rewrites the session document with the new state layer. The
// owning service serializes appends per session, so the read-modify-write
// here does not race with itself.
func (r *SessionRepository) UpdateState(ctx context.Context, appName, userID, sessionID string, state map[string]any) error {
	sess, err := r.getSessionDoc(ctx, appName, userID, sessionID)
	if err != nil {
		return err
	}

	sess.State = state
	return r.putSessionDoc(ctx, sess)
}

// AppendEvent pushes the event onto the ledger list and advances the
// session document's update time.
func (r *SessionRepository) AppendEvent(ctx context.Context, sess *session.Session, event *session.Event) error {
	stored, err := r.getSessionDoc(ctx, sess.AppName, sess.UserID, sess.SessionID)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	if err := r.rdb.RPush(ctx, eventsKey(sess.AppName, sess.UserID, sess.SessionID), doc).Err(); err != nil {
		return errors.Wrap(err, "failed to append event")
	}

	stored.UpdatedAt = event.Timestamp
	return r.putSessionDoc(ctx, stored)
}

// GetAppState reads the shared app state hash.
func (r *SessionRepository) GetAppState(ctx context.Context, appName string) (*session.AppState, error) {
	state, err := r.readStateHash(ctx, appStateKey(appName))
	if err != nil {
		return nil, err
	}
	return &session.AppState{AppName: appName, State: state}, nil
}

// SetAppState writes the shared app state hash.
func (r *SessionRepository) SetAppState(ctx context.Context, appName string, state map[string]any) error {
	return r.writeStateHash(ctx, appStateKey(appName), state)
}

// GetUserState reads the shared user state hash.
func (r *SessionRepository) GetUserState(ctx context.Context, appName, userID string) (*session.UserState, error) {
	state, err := r.readStateHash(ctx, userStateKey(appName, userID))
	if err != nil {
		return nil, err
	}
	return &session.UserState{AppName: appName, UserID: userID, State: state}, nil
}

// SetUserState writes the shared user state hash.
func (r *SessionRepository) SetUserState(ctx context.Context, appName, userID string, state map[string]any) error {
	return r.writeStateHash(ctx, userStateKey(appName, userID), state)
}

func (r *SessionRepository) getSessionDoc(ctx context.Context, appName, userID, sessionID string) (*session.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(appName, userID, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrap(errors.ErrNotFound, "session not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session")
	}
	return &sess, nil
}

func (r *SessionRepository) putSessionDoc(ctx context.Context, sess *session.Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}
	key := sessionKey(sess.AppName, sess.UserID, sess.SessionID)
	if err := r.rdb.Set(ctx, key, doc, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to store session")
	}
	return nil
}

func (r *SessionRepository) readStateHash(ctx context.Context, key string) (map[string]any, error) {
	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read state hash")
	}
	if len(fields) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "state not found")
	}

	state := make(map[string]any, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal state key %s", k)
		}
		state[k] = v
	}
	return state, nil
}

func (r *SessionRepository) writeStateHash(ctx context.Context, key string, state map[string]any) error {
	if len(state) == 0 {
		return nil
	}

	fields := make(map[string]any, len(state))
	for k, v := range state {
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal state key %s", k)
		}
		fields[k] = raw
	}

	if err := r.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return errors.Wrap(err, "failed to write state hash")
	}
	return nil
}
