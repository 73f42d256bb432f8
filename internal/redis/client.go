// Package redis caches raw quote-provider payloads for the market-data
// endpoints. Execution prices for orders are never served from here.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/portfolio-service/internal/config"
)

// Client wraps the Redis client with quote-cache operations.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a new Redis client and verifies the connection.
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: cfg.QuoteTTL}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func quoteKey(function, arg string) string {
	return fmt.Sprintf("quote:%s:%s", function, arg)
}

// GetQuotePayload returns the cached provider payload for (function, arg), or a
// redis.Nil error on a miss.
func (c *Client) GetQuotePayload(ctx context.Context, function, arg string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, quoteKey(function, arg)).Bytes()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// SetQuotePayload caches a provider payload with the configured TTL.
func (c *Client) SetQuotePayload(ctx context.Context, function, arg string, payload json.RawMessage) error {
	return c.rdb.Set(ctx, quoteKey(function, arg), []byte(payload), c.ttl).Err()
}
