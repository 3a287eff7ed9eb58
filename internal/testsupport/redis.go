package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"costguardian/internal/adapters/config"
	redisadapter "costguardian/internal/adapters/redis"
)

// redisKeyspaces are the key patterns the service writes
var redisKeyspaces = []string{"recs:*", "ratelimit:*"}

// NewRedisClient connects through the service adapter and clears the
// service keyspaces before and after the test. Other keys in the
// database are left alone.
func NewRedisClient(t *testing.T, cfg config.RedisConfig) *redis.Client {
	t.Helper()

	adapter, err := redisadapter.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	client := adapter.Client()

	if err := clearKeyspaces(context.Background(), client); err != nil {
		t.Fatalf("failed to clear redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = clearKeyspaces(context.Background(), client)
		_ = adapter.Close()
	})

	return client
}

func clearKeyspaces(ctx context.Context, client *redis.Client) error {
	for _, pattern := range redisKeyspaces {
		iter := client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}
