//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/medicare/medicare/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	bus := NewRedisEventBus(testutil.RedisClient(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetUserChannel("p1")
	sub1, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	sub2, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	event := testEvent()
	require.NoError(t, bus.Publish(context.Background(), channel, event))

	got1 := waitForEvent(t, sub1)
	got2 := waitForEvent(t, sub2)
	assert.Equal(t, event.ID, got1.ID)
	assert.Equal(t, event.ID, got2.ID)
	assert.Equal(t, "2024-06-10", got1.Date.String())
	assert.Equal(t, "10:00", got1.Time.String())
}

func TestRedisEventBusIntegration_PublishRightAfterSubscribe(t *testing.T) {
	bus := NewRedisEventBus(testutil.RedisClient(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 20; i++ {
		channel := providers.GetUserChannel(uuid.NewString())
		sub, err := bus.Subscribe(ctx, channel)
		require.NoError(t, err)

		event := testEvent()
		require.NoError(t, bus.Publish(context.Background(), channel, event))
		assert.Equal(t, event.ID, waitForEvent(t, sub).ID)
	}
}
