package postgres

import (
	"testing"

	"mnemosyne/internal/domain/session"
	"mnemosyne/internal/testsupport"
)

func TestSessionStoreConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Each subtest gets its own rolled-back transaction: a failed
	// statement aborts a postgres transaction, so they cannot share one.
	testsupport.RunSessionStoreConformance(t, func(t *testing.T) session.Repository {
		testDB := testsupport.NewTestPostgres(t)
		return NewSessionRepository(testDB.Tx())
	})
}
