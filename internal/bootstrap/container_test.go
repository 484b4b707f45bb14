package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"mnemosyne/internal/adapters/config"
	"mnemosyne/internal/domain/session"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:      "test",
			LogLevel: "error",
		},
	}
}

func TestNewWiresMemoryBackends(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, testConfig(), Options{
		SessionBackend:  SessionBackendMemory,
		ArtifactBackend: ArtifactBackendMemory,
	})
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Sessions)
	require.NotNil(t, c.Artifacts)
	assert.Nil(t, c.PG)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.ObjectStore)

	sess, err := c.Sessions.CreateSession(ctx, "bootstrap-test", "u1", "", nil)
	require.NoError(t, err)

	_, err = c.Sessions.AppendEvent(ctx, sess, &session.Event{
		Author:  "model",
		Content: genai.NewContentFromText("hello", genai.RoleModel),
	})
	require.NoError(t, err)

	got, err := c.Sessions.GetSession(ctx, "bootstrap-test", "u1", sess.SessionID, nil)
	require.NoError(t, err)
	assert.Len(t, got.Events, 1)

	version, err := c.Artifacts.Save(ctx, "bootstrap-test", "u1", sess.SessionID, "notes.txt", genai.NewPartFromText("wired"))
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestErrorTrackerFallsBackToNoop(t *testing.T) {
	cfg := testConfig()
	cfg.ErrorTracking.Enabled = false

	tracker := newErrorTracker(cfg)
	require.NotNil(t, tracker)

	// Invalid DSN must not fail container construction.
	cfg.ErrorTracking.Enabled = true
	cfg.ErrorTracking.SentryDSN = "not-a-dsn"
	tracker = newErrorTracker(cfg)
	require.NotNil(t, tracker)
}
