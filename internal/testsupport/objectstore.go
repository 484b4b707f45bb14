package testsupport

import (
	"context"
	"testing"

	"mnemosyne/internal/adapters/objectstore"
)

// NewTestObjectStore connects to the object store from the environment,
// skipping the test when none is configured. Tests isolate themselves
// with unique app names; objects are small and buckets are disposable.
func NewTestObjectStore(t *testing.T) *objectstore.Client {
	t.Helper()

	cfg := ObjectStoreConfigFromEnv(t)

	client, err := objectstore.NewClient(context.Background(), cfg)
	if err != nil {
		t.Skipf("object store unreachable: %v", err)
	}

	return client
}
