package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"google.golang.org/genai"

	"mnemosyne/internal/domain/artifact"
	"mnemosyne/pkg/errors"
)

// ArtifactRepository is the volatile artifact backend: one slice of
// immutable parts per key path, the slice index doubling as the version
// number.
type ArtifactRepository struct {
	mu        sync.RWMutex
	artifacts map[string][]*genai.Part
}

// NewArtifactRepository creates an empty in-memory artifact repository.
func NewArtifactRepository() *ArtifactRepository {
	return &ArtifactRepository{
		artifacts: make(map[string][]*genai.Part),
	}
}

// Save appends a new version and returns its number.
func (r *ArtifactRepository) Save(_ context.Context, key artifact.Key, part *genai.Part) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := key.Path()
	version := len(r.artifacts[path])
	r.artifacts[path] = append(r.artifacts[path], part)
	return version, nil
}

// Load returns the requested version, or the latest when version is nil.
func (r *ArtifactRepository) Load(_ context.Context, key artifact.Key, version *int) (*genai.Part, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.artifacts[key.Path()]
	if len(versions) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "artifact not found")
	}

	idx := len(versions) - 1
	if version != nil {
		idx = *version
	}
	if idx < 0 || idx >= len(versions) {
		return nil, errors.Wrap(errors.ErrNotFound, "artifact version not found")
	}

	return versions[idx], nil
}

// ListKeys returns the sorted union of the session's filenames and the
// user-namespace filenames of (app, user).
func (r *ArtifactRepository) ListKeys(_ context.Context, appName, userID, sessionID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionPrefix := appName + "/" + userID + "/" + sessionID + "/"
	userPrefix := appName + "/" + userID + "/user/"

	seen := make(map[string]struct{})
	for path := range r.artifacts {
		switch {
		case strings.HasPrefix(path, sessionPrefix):
			seen[strings.TrimPrefix(path, sessionPrefix)] = struct{}{}
		case strings.HasPrefix(path, userPrefix):
			seen[strings.TrimPrefix(path, userPrefix)] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the entire version history for the key.
func (r *ArtifactRepository) Delete(_ context.Context, key artifact.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.artifacts, key.Path())
	return nil
}

// ListVersions returns all versions in ascending order.
func (r *ArtifactRepository) ListVersions(_ context.Context, key artifact.Key) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := make([]int, len(r.artifacts[key.Path()]))
	for i := range versions {
		versions[i] = i
	}
	return versions, nil
}
