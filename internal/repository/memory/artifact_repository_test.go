package memory

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"mnemosyne/internal/domain/artifact"
	"mnemosyne/internal/testsupport"
)

func TestArtifactStoreConformance(t *testing.T) {
	testsupport.RunArtifactStoreConformance(t, func(t *testing.T) artifact.Repository {
		return NewArtifactRepository()
	})
}

func TestConcurrentSavesGetDistinctVersions(t *testing.T) {
	repo := NewArtifactRepository()
	ctx := context.Background()
	key := artifact.Key{AppName: "app", UserID: "u1", SessionID: "s1", Filename: "log.txt"}

	const writers = 16

	versions := make([]int, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := repo.Save(ctx, key, genai.NewPartFromText("v"))
			assert.NoError(t, err)
			versions[i] = v
		}(i)
	}
	wg.Wait()

	// Versions form a gap-free 0..N-1 sequence with no duplicates.
	sort.Ints(versions)
	for i, v := range versions {
		require.Equal(t, i, v)
	}
}
