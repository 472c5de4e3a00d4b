package broker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds broker connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the Redis connection with the list and key primitives the
// service relies on. Redis atomicity for push/pop/set/delete is the only
// concurrency primitive shared state depends on.
type Client struct {
	rdb *redis.Client
}

// Connect establishes the broker connection and verifies it with a ping.
// All socket operations fail fast with 5s timeouts.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Push prepends a value to the list at key and returns the new list length.
func (c *Client) Push(ctx context.Context, key string, value []byte) (int64, error) {
	n, err := c.rdb.LPush(ctx, key, value).Result()
	if err != nil {
		return 0, fmt.Errorf("push to %s: %w", key, err)
	}
	return n, nil
}

// PopWait blocks until a value arrives at key or the timeout elapses.
// A nil value with nil error means the wait timed out.
func (c *Client) PopWait(ctx context.Context, key string, timeout time.Duration) ([]byte, error) {
	res, err := c.rdb.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop from %s: %w", key, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("pop from %s: unexpected reply of %d elements", key, len(res))
	}
	return []byte(res[1]), nil
}

// SetEx stores value at key with the given expiry.
func (c *Client) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get returns the value at key, or nil when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// Delete removes the given keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %v: %w", keys, err)
	}
	return nil
}

// Length returns the list length at key; missing keys report zero.
func (c *Client) Length(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", key, err)
	}
	return n, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Health describes the broker connection state.
type Health struct {
	Status     string  `json:"status"`
	LatencyMs  float64 `json:"latency_ms,omitempty"`
	TotalConns uint32  `json:"total_conns,omitempty"`
	IdleConns  uint32  `json:"idle_conns,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// CheckHealth pings the broker and reports round-trip latency plus
// connection pool usage.
func (c *Client) CheckHealth(ctx context.Context) Health {
	start := time.Now()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return Health{Status: "unhealthy", Error: err.Error()}
	}

	latency := float64(time.Since(start).Microseconds()) / 1000.0
	stats := c.rdb.PoolStats()

	return Health{
		Status:     "healthy",
		LatencyMs:  math.Round(latency*100) / 100,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
