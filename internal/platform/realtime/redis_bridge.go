package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const bridgeChannel = "carepulse:events"

// bridgeEnvelope wraps an Event with the originating instance ID so an
// instance can skip events it published itself.
type bridgeEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge mirrors hub events across service instances through Redis
// pub/sub. Publish fans the event out locally and to the channel; a
// background subscriber replays remote events into the local hub.
type RedisBridge struct {
	client   *redis.Client
	hub      *Hub
	instance string
	logger   zerolog.Logger
}

// NewRedisBridge constructs a bridge around the given hub.
func NewRedisBridge(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisBridge {
	return &RedisBridge{
		client:   client,
		hub:      hub,
		instance: uuid.New().String(),
		logger:   logger,
	}
}

// Publish broadcasts locally and mirrors the event to the Redis channel.
func (b *RedisBridge) Publish(ctx context.Context, event Event) error {
	b.hub.Broadcast(event)

	payload, err := json.Marshal(bridgeEnvelope{Origin: b.instance, Event: event})
	if err != nil {
		return fmt.Errorf("marshal bridge envelope: %w", err)
	}
	if err := b.client.Publish(ctx, bridgeChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// Run subscribes to the bridge channel and replays remote events into the
// local hub until the context is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, bridgeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn().Err(err).Msg("realtime: malformed bridge payload")
				continue
			}
			if env.Origin == b.instance {
				continue
			}
			b.hub.Broadcast(env.Event)
		}
	}
}
