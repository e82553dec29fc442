// Package notify is the fire-and-forget push channel toward connected
// clients. Delivery is attempted once; nothing here waits for a consumer.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Event names published on per-user channels.
const (
	EventAchievement   = "achievement"
	EventTaskDue       = "task_due"
	EventUserConnected = "user_connected"
)

// Notifier publishes an event to a single user's channel.
type Notifier interface {
	Publish(ctx context.Context, userID, event string, payload interface{}) error
}

// Envelope is the wire shape written to the channel.
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// RedisNotifier pushes events over Redis pub/sub; a websocket gateway (or any
// other edge) subscribes to user:<id>:events and forwards to the client.
type RedisNotifier struct {
	Rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier { return &RedisNotifier{Rdb: rdb} }

func ChannelFor(userID string) string { return fmt.Sprintf("user:%s:events", userID) }

func (n *RedisNotifier) Publish(ctx context.Context, userID, event string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	return n.Rdb.Publish(ctx, ChannelFor(userID), data).Err()
}
