package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifimgone/ifimgone/internal/database"
	"github.com/ifimgone/ifimgone/internal/logger"
)

func TestRedisPublisherRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rdb := database.NewRedisFromClient(client)

	ctx := context.Background()
	sub := client.Subscribe(ctx, ActivationEventsChannel)
	t.Cleanup(func() { sub.Close() })
	// Wait for the subscription before publishing.
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(rdb, logger.New("error", "json"))
	err = pub.Publish(ctx, ActivationEventsChannel, Event{
		Type:      EventRequestActivated,
		RequestID: "req-1",
		UserID:    "user-1",
		Payload:   map[string]string{"expiresAt": "2026-01-02T15:04:05Z"},
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, EventRequestActivated, event.Type)
		assert.Equal(t, "req-1", event.RequestID)
		assert.Equal(t, "user-1", event.UserID)
		assert.NotZero(t, event.Timestamp)
		assert.Equal(t, "2026-01-02T15:04:05Z", event.Payload["expiresAt"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestNoopPublisherDiscards(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), ActivationEventsChannel, Event{Type: EventRequestCreated}))
}
