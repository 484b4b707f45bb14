package testsupport

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"mnemosyne/internal/adapters/redis"
)

// NewTestRedis connects to Redis from the environment, skipping the test
// when no instance is configured. Tests isolate themselves with unique
// app names rather than flushing the database.
func NewTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	cfg := RedisConfigFromEnv(t)

	client, err := redis.NewClient(cfg)
	if err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client.Client()
}
