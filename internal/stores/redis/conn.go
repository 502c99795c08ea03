package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"tipstream/internal/config"
)

type Client struct {
	*goredis.Client
}

func New(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{rdb}, nil
}
