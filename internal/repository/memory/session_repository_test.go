package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/internal/domain/session"
	"mnemosyne/internal/testsupport"
)

func TestSessionStoreConformance(t *testing.T) {
	testsupport.RunSessionStoreConformance(t, func(t *testing.T) session.Repository {
		return NewSessionRepository()
	})
}

func TestConcurrentAppendsDoNotClobberScopeLayers(t *testing.T) {
	svc := session.NewService(NewSessionRepository())
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "app", "u1", "", nil)
	require.NoError(t, err)

	const writers = 32

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := session.NewEvent(session.Event{
				InvocationID: "inv-1",
				Author:       "agent",
				Actions: session.EventActions{StateDelta: map[string]any{
					fmt.Sprintf("app:k%d", i):  i,
					fmt.Sprintf("user:k%d", i): i,
					fmt.Sprintf("k%d", i):      i,
				}},
			})
			_, err := svc.AppendEvent(ctx, sess, &ev)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.GetSession(ctx, "app", "u1", sess.SessionID, nil)
	require.NoError(t, err)
	require.Len(t, got.Events, writers)

	// Every writer's keys survived in every scope layer.
	for i := 0; i < writers; i++ {
		assert.Contains(t, got.State, fmt.Sprintf("app:k%d", i))
		assert.Contains(t, got.State, fmt.Sprintf("user:k%d", i))
		assert.Contains(t, got.State, fmt.Sprintf("k%d", i))
	}
}

func TestGetReturnsCopies(t *testing.T) {
	repo := NewSessionRepository()
	svc := session.NewService(repo)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "app", "u1", "s1", map[string]any{"topic": "intro"})
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "app", "u1", "s1", nil)
	require.NoError(t, err)

	// Mutating the returned view must not leak into the store.
	got.State["topic"] = "mutated"

	again, err := svc.GetSession(ctx, "app", "u1", sess.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, "intro", again.State["topic"])
}
