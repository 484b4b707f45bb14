package objectstore

import (
	"testing"

	"mnemosyne/internal/domain/artifact"
	"mnemosyne/internal/testsupport"
)

func TestArtifactStoreConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestObjectStore(t)

	testsupport.RunArtifactStoreConformance(t, func(t *testing.T) artifact.Repository {
		return NewArtifactRepository(client.Minio(), client.Bucket())
	})
}
