package artifact

import (
	"context"
	"time"

	"google.golang.org/genai"

	"mnemosyne/internal/metrics"
	"mnemosyne/pkg/errors"
	"mnemosyne/pkg/logger"
)

// Service validates artifact operations and delegates storage to a
// Repository backend.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates an artifact service over the given backend.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "artifact_service"),
	}
}

// Save stores a new version of the named artifact and returns the
// allocated version number.
func (s *Service) Save(ctx context.Context, appName, userID, sessionID, filename string, part *genai.Part) (int, error) {
	start := time.Now()

	if appName == "" || userID == "" || filename == "" {
		return 0, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and filename are required")
	}
	if part == nil || (part.InlineData == nil && part.Text == "") {
		return 0, errors.Wrap(errors.ErrInvalidInput, "artifact must carry inline data or text")
	}

	key := Key{AppName: appName, UserID: userID, SessionID: sessionID, Filename: filename}
	version, err := s.repo.Save(ctx, key, part)
	if err != nil {
		return 0, s.observe("save", start, errors.Wrap(err, "failed to save artifact"))
	}

	metrics.RecordArtifactWrite("artifact", PayloadSize(part))
	s.log.Debugf("Saved artifact: %s version=%d", key.Path(), version)
	return version, s.observe("save", start, nil)
}

// Load returns the requested version of the artifact, or the latest when
// version is nil.
func (s *Service) Load(ctx context.Context, appName, userID, sessionID, filename string, version *int) (*genai.Part, error) {
	start := time.Now()

	if appName == "" || userID == "" || filename == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and filename are required")
	}

	key := Key{AppName: appName, UserID: userID, SessionID: sessionID, Filename: filename}
	part, err := s.repo.Load(ctx, key, version)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, s.observe("load", start, err)
		}
		return nil, s.observe("load", start, errors.Wrap(err, "failed to load artifact"))
	}

	return part, s.observe("load", start, nil)
}

// ListKeys returns the sorted union of filenames visible to the session.
func (s *Service) ListKeys(ctx context.Context, appName, userID, sessionID string) ([]string, error) {
	start := time.Now()

	if appName == "" || userID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name and user_id are required")
	}

	keys, err := s.repo.ListKeys(ctx, appName, userID, sessionID)
	if err != nil {
		return nil, s.observe("list_keys", start, errors.Wrap(err, "failed to list artifact keys"))
	}

	return keys, s.observe("list_keys", start, nil)
}

// Delete removes the artifact's entire version history. Absent keys are a
// no-op.
func (s *Service) Delete(ctx context.Context, appName, userID, sessionID, filename string) error {
	start := time.Now()

	if appName == "" || userID == "" || filename == "" {
		return errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and filename are required")
	}

	key := Key{AppName: appName, UserID: userID, SessionID: sessionID, Filename: filename}
	if err := s.repo.Delete(ctx, key); err != nil {
		return s.observe("delete", start, errors.Wrap(err, "failed to delete artifact"))
	}

	return s.observe("delete", start, nil)
}

// ListVersions returns the artifact's version numbers in ascending order.
func (s *Service) ListVersions(ctx context.Context, appName, userID, sessionID, filename string) ([]int, error) {
	start := time.Now()

	if appName == "" || userID == "" || filename == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "app_name, user_id, and filename are required")
	}

	key := Key{AppName: appName, UserID: userID, SessionID: sessionID, Filename: filename}
	versions, err := s.repo.ListVersions(ctx, key)
	if err != nil {
		return nil, s.observe("list_versions", start, errors.Wrap(err, "failed to list artifact versions"))
	}

	return versions, s.observe("list_versions", start, nil)
}

func (s *Service) observe(operation string, start time.Time, err error) error {
	metrics.ObserveStoreOperation("artifact", operation, start, err)
	return err
}
