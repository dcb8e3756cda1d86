package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ifimgone/ifimgone/internal/database"
	"github.com/ifimgone/ifimgone/internal/logger"
)

// Redis channels for lifecycle events and notification requests.
// Delivery transport (email/SMS/push) is owned by an external consumer
// of these channels.
const (
	ActivationEventsChannel = "ifimgone:activation:events"
	NotificationsChannel    = "ifimgone:notifications"
)

// Event is a lifecycle or notification message published to Redis
type Event struct {
	Type      string            `json:"type"`
	RequestID string            `json:"requestId"`
	UserID    string            `json:"userId"`
	Timestamp int64             `json:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// Event types
const (
	EventRequestCreated   = "activation.request_created"
	EventRequestActivated = "activation.request_activated"
	EventRequestRejected  = "activation.request_rejected"
	EventRequestCancelled = "activation.request_cancelled"
	EventRequestExpired   = "activation.request_expired"
	EventNotifyCode       = "notify.verification_code"
)

// Publisher publishes events for external consumers. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// RedisPublisher publishes events to Redis pub/sub channels
type RedisPublisher struct {
	rdb *database.Redis
	log *logger.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a RedisPublisher
func NewRedisPublisher(rdb *database.Redis, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, log: log.WithComponent("events")}
}

// Publish marshals the event and publishes it on the channel
func (p *RedisPublisher) Publish(ctx context.Context, channel string, event Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, channel, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.log.Debug().Str("channel", channel).Str("type", event.Type).Str("request_id", event.RequestID).Msg("event published")
	return nil
}

// NoopPublisher drops all events. Used when Redis is not configured.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

// Publish discards the event
func (NoopPublisher) Publish(context.Context, string, Event) error { return nil }
