package redislock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "greencycle:lock:abc", New(nil, "", 0).Key(" abc "))
	assert.Equal(t, "p:abc", New(nil, "p:", 0).Key("abc"))

	var c *Client
	assert.Equal(t, "abc", c.Key("abc"))
}

func TestToken(t *testing.T) {
	a, err := Token()
	require.NoError(t, err)
	b, err := Token()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestNew_DefaultTTL(t *testing.T) {
	assert.Equal(t, defaultTTL, New(nil, "", 0).ttl)
	assert.Equal(t, time.Minute, New(nil, "", time.Minute).ttl)
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	c := New(nil, "", 0)

	_, err := c.Acquire(ctx, "k", "t", 0)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.Release(ctx, "k", "t")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.Lock(ctx, "id")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Lock(context.Background(), "id")
	require.NoError(t, err)
	release()
}
