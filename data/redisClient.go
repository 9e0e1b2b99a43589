package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nthewara88agent/stock-tracker/config"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 2 * time.Second

// NewRedisClient connects to the price snapshot store. It panics when redis
// stays unreachable.
func NewRedisClient(cfg *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var pong string
	var err error

	for connAttempts := defaultConnAttemts; connAttempts > 0; connAttempts-- {
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		pong, err = rdb.Ping(ctx).Result()
		cancel()
		if err == nil {
			break
		}

		slog.Info("Redis is trying to connect", slog.Int("attempts left", connAttempts), slog.String("err", err.Error()))

		time.Sleep(connTimeout)
	}

	if err != nil {
		slog.Error("Error while connecting Redis", slog.String("error", err.Error()))
		panic(err)
	}
	slog.Info("Redis connected", slog.String("pong", pong), slog.Int("db", cfg.Redis.DB))

	return rdb
}
