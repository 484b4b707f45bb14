package session

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Session represents one conversation: an append-only event ledger plus
// the materialized state view (app, user and session scopes merged).
type Session struct {
	ID        uuid.UUID
	AppName   string
	UserID    string
	SessionID string
	State     map[string]any
	Events    []Event
	UpdatedAt time.Time
	CreatedAt time.Time
}

// Event is one immutable turn of a conversation. It is constructed once by
// its producer and appended to at most one session's ledger.
type Event struct {
	ID                 string
	InvocationID       string
	Author             string
	Branch             string
	Content            *genai.Content
	Actions            EventActions
	LongRunningToolIDs []string
	Partial            bool
	Timestamp          time.Time
}

// EventActions is the side-effect payload of an event: state mutation
// intent, artifact touch records, pending approvals and control flags.
// The boolean flags are pointers so a merge can tell "explicitly false"
// apart from "unset".
type EventActions struct {
	StateDelta                 map[string]any
	ArtifactDelta              map[string]int
	RequestedAuthConfigs       map[string]any
	RequestedToolConfirmations map[string]bool
	SkipSummarization          *bool
	TransferToAgent            string
	Escalate                   *bool
}

// NewEventActions returns an empty action set with all maps initialized.
func NewEventActions() EventActions {
	return EventActions{
		StateDelta:                 make(map[string]any),
		ArtifactDelta:              make(map[string]int),
		RequestedAuthConfigs:       make(map[string]any),
		RequestedToolConfirmations: make(map[string]bool),
	}
}

// AppState is the application-level state layer shared across all users
// and sessions of an app.
type AppState struct {
	AppName string
	State   map[string]any
}

// UserState is the user-level state layer shared across all sessions of
// one user within an app.
type UserState struct {
	AppName string
	UserID  string
	State   map[string]any
}

const eventIDLength = 8

const eventIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewEventID generates an 8-character alphanumeric event id. Collisions
// are accepted as negligible and not checked.
func NewEventID() string {
	b := make([]byte, eventIDLength)
	for i := range b {
		b[i] = eventIDAlphabet[rand.IntN(len(eventIDAlphabet))]
	}
	return string(b)
}

// NewEvent fills in the defaulted fields of an event, preserving anything
// the caller supplied: id, empty long-running tool list, the current
// wall-clock timestamp and writable action-set maps.
func NewEvent(ev Event) Event {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.LongRunningToolIDs == nil {
		ev.LongRunningToolIDs = []string{}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Actions.StateDelta == nil {
		ev.Actions.StateDelta = make(map[string]any)
	}
	if ev.Actions.ArtifactDelta == nil {
		ev.Actions.ArtifactDelta = make(map[string]int)
	}
	if ev.Actions.RequestedAuthConfigs == nil {
		ev.Actions.RequestedAuthConfigs = make(map[string]any)
	}
	if ev.Actions.RequestedToolConfirmations == nil {
		ev.Actions.RequestedToolConfirmations = make(map[string]bool)
	}
	return ev
}
