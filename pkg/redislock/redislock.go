package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "greencycle:lock:"
	defaultTTL    = 15 * time.Second
)

var (
	// ErrNotInitialized is returned when the client has no redis connection
	ErrNotInitialized = errors.New("redis lock not initialized")
	// ErrEmptyKey is returned for a blank key or token
	ErrEmptyKey = errors.New("lock key/token is empty")
	// ErrNotAcquired is returned by Lock when another holder owns the key
	ErrNotAcquired = errors.New("lock is held by another owner")
)

// Client implements a Redis lock: SET NX PX plus Lua scripts for safe release/refresh.
// Used to serialize mutations of a single record across API instances.
type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Client{
		rdb:    rdb,
		prefix: strings.TrimSpace(prefix),
		ttl:    ttl,
	}
}

func (c *Client) Key(id string) string {
	id = strings.TrimSpace(id)
	if c == nil {
		return id
	}
	p := c.prefix
	if p == "" {
		p = defaultPrefix
	}
	return p + id
}

func Token() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func checkArgs(c *Client, key, token string) (string, string, error) {
	if c == nil || c.rdb == nil {
		return "", "", ErrNotInitialized
	}
	key = strings.TrimSpace(key)
	token = strings.TrimSpace(token)
	if key == "" || token == "" {
		return "", "", ErrEmptyKey
	}
	return key, token, nil
}

func (c *Client) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	key, token, err := checkArgs(c, key, token)
	if err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.rdb.SetNX(ctx, key, token, ttl).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (c *Client) Release(ctx context.Context, key, token string) (bool, error) {
	key, token, err := checkArgs(c, key, token)
	if err != nil {
		return false, err
	}
	n, err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Lock acquires the lock for id and returns a release func.
// Returns ErrNotAcquired if someone else holds it.
func (c *Client) Lock(ctx context.Context, id string) (func(), error) {
	token, err := Token()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}
	key := c.Key(id)
	ok, err := c.Acquire(ctx, key, token, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func() {
		// Fresh context: the request context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = c.Release(releaseCtx, key, token)
	}, nil
}

// Noop is a Locker used when redis is not configured. Row versioning still
// guards concurrent writers.
type Noop struct{}

func (Noop) Lock(ctx context.Context, id string) (func(), error) {
	return func() {}, nil
}
