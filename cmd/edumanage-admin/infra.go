package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/edumanage/edumanage/internal/bootstrap"
)

// connectRedisOnly connects the Redis client for commands that never touch
// Postgres (session inspection).
//
//nolint:ireturn // returning redis.UniversalClient keeps the client type flexible.
func connectRedisOnly(cmdCtx *commandContext) (redis.UniversalClient, error) {
	if cmdCtx.Config.Redis.URI == "" {
		return nil, errors.New("no redis configuration detected")
	}

	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
