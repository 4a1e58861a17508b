package redisdb

import (
	"github.com/redis/go-redis/v9"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
)

func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
