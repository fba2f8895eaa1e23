package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ncats/biggim-gateway/pkg/common/config"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
)

// OpenRedis returns a client for the result cache. A failed ping is logged
// but not fatal; cache calls fail soft until Redis becomes reachable.
func OpenRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).WithField("addr", client.Options().Addr).Warn("Redis not reachable, result cache will miss")
	} else {
		logger.Log.Info("Connected to Redis")
	}

	return client
}
