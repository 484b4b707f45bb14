package session

import (
	"context"
	"time"
)

// Repository defines the backend capability contract for session storage.
// Every backend (in-memory, PostgreSQL, Redis) implements raw storage of
// sessions, events and the shared app/user state layers; scope routing and
// state merging live in the Service so all backends behave identically.
type Repository interface {
	// Session CRUD operations
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, appName, userID, sessionID string, opts *GetOptions) (*Session, error)
	List(ctx context.Context, appName, userID string) ([]*Session, error)
	Delete(ctx context.Context, appName, userID, sessionID string) error
	UpdateState(ctx context.Context, appName, userID, sessionID string, state map[string]any) error

	// AppendEvent appends one event to the session's ledger and bumps the
	// session's update time.
	AppendEvent(ctx context.Context, session *Session, event *Event) error

	// Shared state layer operations
	GetAppState(ctx context.Context, appName string) (*AppState, error)
	SetAppState(ctx context.Context, appName string, state map[string]any) error
	GetUserState(ctx context.Context, appName, userID string) (*UserState, error)
	SetUserState(ctx context.Context, appName, userID string, state map[string]any) error
}

// GetOptions provides event filtering for Get.
type GetOptions struct {
	// NumRecentEvents limits the ledger to its most recent N events.
	NumRecentEvents int
	// After drops events with a timestamp before the given time.
	After time.Time
}

// FilterEvents applies GetOptions to a ledger in append order: the After
// cutoff first, then the most-recent-N tail. Backends that cannot filter
// natively share this so the contract stays identical across them.
func FilterEvents(events []Event, opts *GetOptions) []Event {
	if opts == nil {
		return events
	}

	filtered := events
	if !opts.After.IsZero() {
		filtered = nil
		for _, ev := range events {
			if !ev.Timestamp.Before(opts.After) {
				filtered = append(filtered, ev)
			}
		}
	}
	if opts.NumRecentEvents > 0 && len(filtered) > opts.NumRecentEvents {
		filtered = filtered[len(filtered)-opts.NumRecentEvents:]
	}
	if filtered == nil {
		filtered = []Event{}
	}
	return filtered
}
