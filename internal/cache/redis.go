package cache

import (
	"context"
	"fmt"

	"trainingdesk/pkg/types"

	"github.com/redis/go-redis/v9"
)

// Connect returns a pinged client, or nil when no address is configured.
func Connect(ctx context.Context, config *types.Config) (*redis.Client, error) {
	if config.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	return client, nil
}
