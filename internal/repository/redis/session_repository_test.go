package redis

import (
	"testing"

	"mnemosyne/internal/domain/session"
	"mnemosyne/internal/testsupport"
)

func TestSessionStoreConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)

	testsupport.RunSessionStoreConformance(t, func(t *testing.T) session.Repository {
		return NewSessionRepository(client)
	})
}
