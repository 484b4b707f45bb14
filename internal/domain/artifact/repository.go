package artifact

import (
	"context"

	"google.golang.org/genai"
)

// Repository defines the backend capability contract for versioned
// artifact storage. Versions are dense, zero-based and strictly
// increasing per key; every backend must yield the identical externally
// observed sequence 0, 1, 2, … regardless of how it counts internally.
type Repository interface {
	// Save stores a new immutable version of the artifact and returns its
	// version number. Saves never overwrite.
	Save(ctx context.Context, key Key, part *genai.Part) (int, error)

	// Load returns the requested version, or the highest existing version
	// when version is nil. Absent keys and versions yield ErrNotFound.
	Load(ctx context.Context, key Key, version *int) (*genai.Part, error)

	// ListKeys returns the deduplicated, lexicographically sorted union of
	// filenames reachable from the session: its own namespace plus the
	// user namespace of (app, user).
	ListKeys(ctx context.Context, appName, userID, sessionID string) ([]string, error)

	// Delete removes the entire version history for the key. Deleting an
	// absent key is a no-op.
	Delete(ctx context.Context, key Key) error

	// ListVersions returns all existing versions for the key in ascending
	// order. An absent key yields an empty list.
	ListVersions(ctx context.Context, key Key) ([]int, error)
}
