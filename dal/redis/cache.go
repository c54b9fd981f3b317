// Package redis shares cached upstream answers and the portfolio book
// between server instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Prefix namespaces every key of the service.
const Prefix = "denowallet:"

// Options locates the server.
type Options struct {
	Address  string
	Username string
	Password string
	DB       int
}

// Cache is a redis backed key value store.
type Cache struct {
	Client *redis.Client
}

// New connects to the server and checks it answers.
func New(ctx context.Context, o Options) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        o.Address,
		Username:    o.Username,
		Password:    o.Password,
		DB:          o.DB,
		DialTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cannot ping redis %s: %w", o.Address, err)
	}
	return &Cache{Client: client}, nil
}

// Get returns the value of key and whether it exists.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.Client.Get(ctx, Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value without expiry.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.Put(ctx, key, value, 0)
}

// Put stores value for ttl, 0 means forever.
func (c *Cache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Client.Set(ctx, Prefix+key, value, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.Client.Del(ctx, Prefix+key).Err()
}

func (c *Cache) Close() error { return c.Client.Close() }
