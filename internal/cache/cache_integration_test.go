//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewClient(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisCache(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	c := New(client, "test")

	_, hit, err := c.Get(ctx, "products_a", "/products")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "products_a", `{"message":"a"}`, time.Minute))
	require.NoError(t, c.Set(ctx, "products_b", `{"message":"b"}`, time.Minute))
	require.NoError(t, c.Set(ctx, "trending_a", `{"message":"t"}`, time.Minute))

	body, hit, err := c.Get(ctx, "products_a", "/products")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, `{"message":"a"}`, body)

	c.InvalidateByPrefix(ctx, "products_", "/products")

	for _, key := range []string{"products_a", "products_b"} {
		_, hit, err := c.Get(ctx, key, "/products")
		require.NoError(t, err)
		assert.False(t, hit, key)
	}
	_, hit, err = c.Get(ctx, "trending_a", "/trending")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestPubSub(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := NewRedisSubscriber(ctx, client, AlertsChannel)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, NewPublisher(client).Publish(ctx, AlertsChannel, `{"user_id":1}`))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, AlertsChannel, msg.Channel)
	assert.Equal(t, `{"user_id":1}`, msg.Payload)
}
