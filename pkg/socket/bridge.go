package socket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"campusride/pkg/logger"
)

// RedisBridge replays fan-out ops between nodes over a Redis pub/sub
// channel, so a user connected to another process still gets the event.
type RedisBridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
	log     logger.ILogger
}

func NewRedisBridge(hub *Hub, client *redis.Client, channel string, log logger.ILogger) *RedisBridge {
	b := &RedisBridge{
		hub:     hub,
		client:  client,
		channel: channel,
		log:     log,
	}
	hub.setPublisher(b)
	return b
}

func (b *RedisBridge) publish(o op) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return b.client.Publish(context.Background(), b.channel, data).Err()
}

// Run subscribes and applies ops published by other nodes until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info("fan-out bridge subscribed", logger.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var o op
			if err := json.Unmarshal([]byte(msg.Payload), &o); err != nil {
				b.log.Warning("invalid fan-out op", logger.Error(err))
				continue
			}
			if o.Origin == b.hub.node {
				continue
			}
			b.hub.apply(o)
		}
	}
}
