package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"mnemosyne/internal/domain/artifact"
	"mnemosyne/internal/domain/session"
	"mnemosyne/pkg/errors"
)

// RunSessionStoreConformance exercises the session store contract against
// one backend. Every backend must pass the identical suite; the service
// layer is included so scope routing and merging are covered end to end.
func RunSessionStoreConformance(t *testing.T, newRepo func(t *testing.T) session.Repository) {
	ctx := context.Background()

	t.Run("CreateMergesScopeLayers", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		// Seed the shared layers through a first session.
		_, err := svc.CreateSession(ctx, app, "u1", "", map[string]any{
			"app:theme":    "dark",
			"user:locale":  "en",
			"greeted":      true,
			"temp:scratch": "gone",
		})
		require.NoError(t, err)

		sess, err := svc.CreateSession(ctx, app, "u1", "", map[string]any{"topic": "intro"})
		require.NoError(t, err)

		assert.Equal(t, "dark", sess.State["app:theme"])
		assert.Equal(t, "en", sess.State["user:locale"])
		assert.Equal(t, "intro", sess.State["topic"])
		assert.NotContains(t, sess.State, "temp:scratch")
		assert.NotContains(t, sess.State, "greeted", "session-local keys stay local")
	})

	t.Run("PartialEventNeverStored", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		sess, err := svc.CreateSession(ctx, app, "u1", "", nil)
		require.NoError(t, err)

		partial := session.NewEvent(session.Event{
			InvocationID: "inv-1",
			Author:       "agent",
			Partial:      true,
			Actions:      session.EventActions{StateDelta: map[string]any{"ignored": 1}},
		})
		returned, err := svc.AppendEvent(ctx, sess, &partial)
		require.NoError(t, err)
		assert.Equal(t, &partial, returned)

		got, err := svc.GetSession(ctx, app, "u1", sess.SessionID, nil)
		require.NoError(t, err)
		assert.Empty(t, got.Events)
		assert.NotContains(t, got.State, "ignored")
	})

	t.Run("AppendRoutesScopedDeltas", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		sess, err := svc.CreateSession(ctx, app, "u1", "", nil)
		require.NoError(t, err)

		ev := session.NewEvent(session.Event{
			InvocationID: "inv-1",
			Author:       "agent",
			Actions: session.EventActions{StateDelta: map[string]any{
				"app:model":   "m-1",
				"user:tier":   "pro",
				"turn_count":  1,
				"temp:buffer": "xyz",
			}},
		})
		_, err = svc.AppendEvent(ctx, sess, &ev)
		require.NoError(t, err)

		// The ephemeral key stays in the action set but never reaches state.
		assert.Contains(t, ev.Actions.StateDelta, "temp:buffer")
		assert.NotContains(t, sess.State, "temp:buffer")

		// Shared-layer writes are visible to other sessions opened later.
		other, err := svc.CreateSession(ctx, app, "u1", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "m-1", other.State["app:model"])
		assert.Equal(t, "pro", other.State["user:tier"])
		assert.NotContains(t, other.State, "turn_count")

		// And to sessions of other users, app layer only.
		stranger, err := svc.CreateSession(ctx, app, "u2", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "m-1", stranger.State["app:model"])
		assert.NotContains(t, stranger.State, "user:tier")
	})

	t.Run("AppendKeepsLedgerOrder", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		sess, err := svc.CreateSession(ctx, app, "u1", "", nil)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			ev := session.NewEvent(session.Event{InvocationID: "inv-1", Author: "agent"})
			_, err := svc.AppendEvent(ctx, sess, &ev)
			require.NoError(t, err)
		}

		got, err := svc.GetSession(ctx, app, "u1", sess.SessionID, nil)
		require.NoError(t, err)
		require.Len(t, got.Events, 5)
		for i, ev := range got.Events {
			assert.Equal(t, sess.Events[i].ID, ev.ID)
		}

		recent, err := svc.GetSession(ctx, app, "u1", sess.SessionID, &session.GetOptions{NumRecentEvents: 2})
		require.NoError(t, err)
		require.Len(t, recent.Events, 2)
		assert.Equal(t, sess.Events[3].ID, recent.Events[0].ID)
		assert.Equal(t, sess.Events[4].ID, recent.Events[1].ID)
	})

	t.Run("GetAbsentSession", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		_, err := svc.GetSession(ctx, app, "u1", "nope", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("AppendToDeletedSession", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		sess, err := svc.CreateSession(ctx, app, "u1", "", nil)
		require.NoError(t, err)
		require.NoError(t, svc.DeleteSession(ctx, app, "u1", sess.SessionID))

		ev := session.NewEvent(session.Event{InvocationID: "inv-1", Author: "agent"})
		_, err = svc.AppendEvent(ctx, sess, &ev)
		require.Error(t, err)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		sess, err := svc.CreateSession(ctx, app, "u1", "", nil)
		require.NoError(t, err)

		require.NoError(t, svc.DeleteSession(ctx, app, "u1", sess.SessionID))
		require.NoError(t, svc.DeleteSession(ctx, app, "u1", sess.SessionID))
		require.NoError(t, svc.DeleteSession(ctx, app, "u1", "never-existed"))
	})

	t.Run("ListSessions", func(t *testing.T) {
		svc := session.NewService(newRepo(t))
		app := uniqueName("app")

		first, err := svc.CreateSession(ctx, app, "u1", "s1", nil)
		require.NoError(t, err)
		_, err = svc.CreateSession(ctx, app, "u1", "s2", nil)
		require.NoError(t, err)
		_, err = svc.CreateSession(ctx, app, "u2", "s3", nil)
		require.NoError(t, err)

		listed, err := svc.ListSessions(ctx, app, "u1")
		require.NoError(t, err)
		require.Len(t, listed, 2)
		for _, sess := range listed {
			assert.Empty(t, sess.Events)
		}

		require.NoError(t, svc.DeleteSession(ctx, app, "u1", first.SessionID))
		listed, err = svc.ListSessions(ctx, app, "u1")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "s2", listed[0].SessionID)
	})
}

// RunArtifactStoreConformance exercises the artifact store contract
// against one backend.
func RunArtifactStoreConformance(t *testing.T, newRepo func(t *testing.T) artifact.Repository) {
	ctx := context.Background()

	t.Run("SequentialVersions", func(t *testing.T) {
		svc := artifact.NewService(newRepo(t))
		app := uniqueName("app")

		payloads := [][]byte{{0x01}, {0x02}, {0x03}}
		for i, data := range payloads {
			version, err := svc.Save(ctx, app, "u1", "s1", "report.bin", genai.NewPartFromBytes(data, "application/octet-stream"))
			require.NoError(t, err)
			assert.Equal(t, i, version)
		}

		latest, err := svc.Load(ctx, app, "u1", "s1", "report.bin", nil)
		require.NoError(t, err)
		require.NotNil(t, latest.InlineData)
		assert.Equal(t, payloads[2], latest.InlineData.Data)

		v0 := 0
		oldest, err := svc.Load(ctx, app, "u1", "s1", "report.bin", &v0)
		require.NoError(t, err)
		assert.Equal(t, payloads[0], oldest.InlineData.Data)

		versions, err := svc.ListVersions(ctx, app, "u1", "s1", "report.bin")
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, versions)
	})

	t.Run("BinaryRoundTrip", func(t *testing.T) {
		svc := artifact.NewService(newRepo(t))
		app := uniqueName("app")

		png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x01, 0x02}
		_, err := svc.Save(ctx, app, "u1", "s1", "chart.png", genai.NewPartFromBytes(png, "image/png"))
		require.NoError(t, err)

		got, err := svc.Load(ctx, app, "u1", "s1", "chart.png", nil)
		require.NoError(t, err)
		require.NotNil(t, got.InlineData)
		assert.Equal(t, png, got.InlineData.Data)
		assert.Equal(t, "image/png", got.InlineData.MIMEType)
	})

	t.Run("TextRoundTrip", func(t *testing.T) {
		svc := artifact.NewService(newRepo(t))
		app := uniqueName("app")

		_, err := svc.Save(ctx, app, "u1", "s1", "summary.txt", genai.NewPartFromText("the summary"))
		require.NoError(t, err)

		got, err := svc.Load(ctx, app, "u1", "s1", "summary.txt", nil)
		require.NoError(t, err)
		assert.Equal(t, "the summary", got.Text)
	})

	t.Run("UserNamespaceCrossesSessions", func(t *testing.T) {
		svc := artifact.NewService(newRepo(t))
		app := uniqueName("app")

		_, err := svc.Save(ctx, app, "u1", "s1", "user:notes.txt", genai.NewPartFromText("shared"))
		require.NoError(t, err)
		_, err = svc.Save(ctx, app, "u1", "s1", "notes.txt", genai.NewPartFromText("local"))
		require.NoError(t, err)

		otherSession, err := svc.ListKeys(ctx, app, "u1", "s2")
		require.NoError(t, err)
		assert.Contains(t, otherSession, "user:notes.txt")
		assert.NotContains(t, otherSession, "notes.txt")

		sameSession, err := svc.ListKeys(ctx, app, "u1", "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"notes.txt", "user:notes.txt"}, sameSession)

		got, err := svc.Load(ctx, app, "u1", "s2", "user:notes.txt", nil)
		require.NoError(t, err)
		assert.Equal(t, "shared", got.Text)
	})

	t.Run("LoadAbsent", func(t *testing.T) {
		svc := artifact.NewService(newRepo(t))
		app := uniqueName("app")

		_, err := svc.Load(ctx, app, "u1", "s1", "missing.txt", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))

		_, err = svc.Save(ctx, app, "u1", "s1", "present.txt", genai.NewPartFromText("v0"))
		require.NoError(t, err)
		v9 := 9
		_, err = svc.Load(ctx, app, "u1", "s1", "present.txt", &v9)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("DeleteRemovesHistory", func(t *testing.T) {
		svc := artifact.NewService(newRepo(t))
		app := uniqueName("app")

		for i := 0; i < 3; i++ {
			_, err := svc.Save(ctx, app, "u1", "s1", "scratch.txt", genai.NewPartFromText("v"))
			require.NoError(t, err)
		}

		require.NoError(t, svc.Delete(ctx, app, "u1", "s1", "scratch.txt"))

		versions, err := svc.ListVersions(ctx, app, "u1", "s1", "scratch.txt")
		require.NoError(t, err)
		assert.Empty(t, versions)

		// Absent keys are a no-op.
		require.NoError(t, svc.Delete(ctx, app, "u1", "s1", "scratch.txt"))

		// A fresh save starts the sequence over.
		version, err := svc.Save(ctx, app, "u1", "s1", "scratch.txt", genai.NewPartFromText("fresh"))
		require.NoError(t, err)
		assert.Equal(t, 0, version)
	})
}

func uniqueName(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}
