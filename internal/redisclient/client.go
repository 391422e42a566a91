package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}

// Load reads the serialized cart state for a key, (nil, nil) when absent.
func (c *Client) Load(ctx context.Context, key string) (*models.CartState, error) {
	raw, err := c.rdb.Get(ctx, cartKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var state models.CartState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart state: %w", err)
	}
	return &state, nil
}

// Save writes the serialized cart state for a key. Last write wins.
func (c *Client) Save(ctx context.Context, key string, state *models.CartState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal cart state: %w", err)
	}
	if err := c.rdb.Set(ctx, cartKey(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write cart: %w", err)
	}
	return nil
}

// Delete removes the stored cart state for a key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, cartKey(key)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// GetIdempotencyKey returns the stored value for an idempotency key,
// "" when absent.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}
