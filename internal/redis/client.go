// Package redis is a recoverable cache for component F's in-memory
// session bookkeeping: the open flight_session per ICAO and the last
// persisted path sample used by the change-significance throttle. Both
// live primarily in the DB worker's own process memory (internal/store);
// Redis lets a restarted worker rehydrate them instead of treating every
// aircraft as brand new. Grounded on the teacher's internal/redis/client.go
// (RedisClientInterface test seam, JSON-marshal-to-string-key pattern),
// retargeted from flight/aircraft-state caching to flight_session/path.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adsbgo/pipeline/internal/model"
)

// ClientInterface defines the Redis operations used by our client.
type ClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client manages Redis connections and operations.
type Client struct {
	client ClientInterface
}

// New creates a new Redis client, verifying connectivity with a ping.
func New(addr string) (*Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: c}, nil
}

// NewWithClient wraps a custom ClientInterface, used for testing.
func NewWithClient(client ClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func sessionKey(icaoHex string) string    { return fmt.Sprintf("session:%s", icaoHex) }
func lastSampleKey(icaoHex string) string { return fmt.Sprintf("lastsample:%s", icaoHex) }

// StoreSession caches the open flight_session for icaoHex.
func (c *Client) StoreSession(ctx context.Context, icaoHex string, sess model.FlightSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal flight session: %w", err)
	}
	return c.client.Set(ctx, sessionKey(icaoHex), data, 24*time.Hour).Err()
}

// GetSession retrieves the cached open session for icaoHex, or nil if
// none is cached.
func (c *Client) GetSession(ctx context.Context, icaoHex string) (*model.FlightSession, error) {
	var sess model.FlightSession
	found, err := c.getJSON(ctx, sessionKey(icaoHex), &sess)
	if err != nil || !found {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes the cached session for icaoHex.
func (c *Client) DeleteSession(ctx context.Context, icaoHex string) error {
	return c.client.Del(ctx, sessionKey(icaoHex)).Err()
}

// StoreLastSample caches the most recently persisted path sample for
// icaoHex, used to rehydrate the change-significance throttle.
func (c *Client) StoreLastSample(ctx context.Context, icaoHex string, sample model.PathSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal path sample: %w", err)
	}
	return c.client.Set(ctx, lastSampleKey(icaoHex), data, time.Hour).Err()
}

// GetLastSample retrieves the cached last-persisted sample for icaoHex,
// or nil if none is cached.
func (c *Client) GetLastSample(ctx context.Context, icaoHex string) (*model.PathSample, error) {
	var sample model.PathSample
	found, err := c.getJSON(ctx, lastSampleKey(icaoHex), &sample)
	if err != nil || !found {
		return nil, err
	}
	return &sample, nil
}

// DeleteLastSample removes the cached sample for icaoHex.
func (c *Client) DeleteLastSample(ctx context.Context, icaoHex string) error {
	return c.client.Del(ctx, lastSampleKey(icaoHex)).Err()
}

func (c *Client) getJSON(ctx context.Context, key string, target interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
