package session

import "strings"

// State key prefixes for multi-level state scoping. Keys without a prefix
// are session-scoped.
const (
	KeyPrefixApp  = "app:"
	KeyPrefixUser = "user:"
	KeyPrefixTemp = "temp:"
)

// Scope identifies the visibility tier of a state key.
type Scope int

const (
	// ScopeSession is the default tier: visible to one session only.
	ScopeSession Scope = iota
	// ScopeApp is shared across all users and sessions of an app.
	ScopeApp
	// ScopeUser is shared across all sessions of one user within an app.
	ScopeUser
	// ScopeTemp is ephemeral: never persisted anywhere.
	ScopeTemp
)

// String returns a human-readable scope name.
func (s Scope) String() string {
	switch s {
	case ScopeApp:
		return "app"
	case ScopeUser:
		return "user"
	case ScopeTemp:
		return "temp"
	default:
		return "session"
	}
}

// ScopeOf derives the scope of a state key from its prefix. The prefix is
// inspected once here; callers dispatch on the returned tag instead of
// re-testing prefixes at every call site.
func ScopeOf(key string) Scope {
	switch {
	case strings.HasPrefix(key, KeyPrefixApp):
		return ScopeApp
	case strings.HasPrefix(key, KeyPrefixUser):
		return ScopeUser
	case strings.HasPrefix(key, KeyPrefixTemp):
		return ScopeTemp
	default:
		return ScopeSession
	}
}

// StripScope removes the scope prefix from a key, returning the bare key
// under which the value is stored in its scope layer.
func StripScope(key string) string {
	switch ScopeOf(key) {
	case ScopeApp:
		return key[len(KeyPrefixApp):]
	case ScopeUser:
		return key[len(KeyPrefixUser):]
	case ScopeTemp:
		return key[len(KeyPrefixTemp):]
	default:
		return key
	}
}

// State is a two-layer key/value container: a committed value map plus a
// delta map recording what changed. Set writes both layers at once; the
// delta exists so callers can observe which keys were touched, not as a
// pending-commit staging area. State is a plain value object with no
// locking; concurrency safety belongs to the owning store.
type State struct {
	value map[string]any
	delta map[string]any
}

// NewState creates a State seeded with the given committed values. The
// delta starts empty. A nil map is allowed.
func NewState(value map[string]any) *State {
	s := &State{
		value: make(map[string]any, len(value)),
		delta: make(map[string]any),
	}
	for k, v := range value {
		s.value[k] = v
	}
	return s
}

// Get returns the value for key, preferring the delta layer.
func (s *State) Get(key string) (any, bool) {
	if v, ok := s.delta[key]; ok {
		return v, true
	}
	v, ok := s.value[key]
	return v, ok
}

// GetDefault returns the value for key, or def when absent from both layers.
func (s *State) GetDefault(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Set writes key into both layers.
func (s *State) Set(key string, value any) {
	s.value[key] = value
	s.delta[key] = value
}

// Update merges an entire patch into both layers.
func (s *State) Update(patch map[string]any) {
	for k, v := range patch {
		s.Set(k, v)
	}
}

// Has reports whether key is present in either layer.
func (s *State) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// HasDelta reports whether any key has been changed since construction.
func (s *State) HasDelta() bool {
	return len(s.delta) > 0
}

// ToMap flattens both layers into a single map, delta winning on conflict.
func (s *State) ToMap() map[string]any {
	out := make(map[string]any, len(s.value)+len(s.delta))
	for k, v := range s.value {
		out[k] = v
	}
	for k, v := range s.delta {
		out[k] = v
	}
	return out
}

// MergeScopes builds the materialized state view of a session: app-layer
// entries come back under their app: prefix, user-layer entries under
// user:, and session-local entries bare. Merge order is app, user, then
// session, so session-local keys win any tie.
func MergeScopes(appState, userState, sessionState map[string]any) map[string]any {
	merged := make(map[string]any, len(appState)+len(userState)+len(sessionState))
	for k, v := range appState {
		merged[KeyPrefixApp+k] = v
	}
	for k, v := range userState {
		merged[KeyPrefixUser+k] = v
	}
	for k, v := range sessionState {
		merged[k] = v
	}
	return merged
}

// SplitDelta routes a raw state delta into per-scope maps. App and user
// keys are stripped of their prefix; temp keys are dropped entirely.
func SplitDelta(delta map[string]any) (app, user, sess map[string]any) {
	app = make(map[string]any)
	user = make(map[string]any)
	sess = make(map[string]any)

	for key, value := range delta {
		switch ScopeOf(key) {
		case ScopeApp:
			app[StripScope(key)] = value
		case ScopeUser:
			user[StripScope(key)] = value
		case ScopeTemp:
			// Ephemeral: never persisted.
		default:
			sess[key] = value
		}
	}
	return app, user, sess
}

// SessionScopeOnly filters a merged state view down to its session-local
// entries, the only part that belongs in the session's own storage row.
func SessionScopeOnly(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		if ScopeOf(k) == ScopeSession {
			out[k] = v
		}
	}
	return out
}
