package services

import (
	"context"
	"encoding/json"
	"fmt"

	"goride/internal/models"
	"goride/pkg/cache"
	"goride/pkg/logger"
)

type bridgeMessage struct {
	Event    *models.Event `json:"event"`
	Channels []string      `json:"channels"`
}

// RedisEventBridge fans events out across server instances: Deliver
// publishes to a Redis channel and Run feeds every received message to the
// local sink, normally the websocket hub.
type RedisEventBridge struct {
	cache   *cache.RedisCache
	channel string
	local   EventSink
	logger  *logger.Logger
}

func NewRedisEventBridge(c *cache.RedisCache, channel string, local EventSink, log *logger.Logger) *RedisEventBridge {
	return &RedisEventBridge{
		cache:   c,
		channel: channel,
		local:   local,
		logger:  log,
	}
}

func (b *RedisEventBridge) Name() string {
	return "redis"
}

func (b *RedisEventBridge) Deliver(ctx context.Context, event *models.Event, channels []string) error {
	payload, err := json.Marshal(bridgeMessage{Event: event, Channels: channels})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.cache.Publish(ctx, b.channel, payload)
}

// Run blocks until ctx is cancelled. ready, when not nil, is closed once the
// subscription is confirmed.
func (b *RedisEventBridge) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.cache.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var decoded bridgeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil || decoded.Event == nil {
				b.logger.WithField("channel", b.channel).Warn("Discarding malformed bridged event")
				continue
			}
			if err := b.local.Deliver(ctx, decoded.Event, decoded.Channels); err != nil {
				b.logger.WithError(err).Warn("Local delivery of bridged event failed")
			}
		}
	}
}
