package channel

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisChannelPrefix = "livedoc:channel:"

// redisEnvelope wraps a broadcast for cross-node transport. Origin lets a
// node skip its own messages when they come back around. Payload is raw
// bytes (base64 on the wire) because broadcasts are not required to be JSON.
type redisEnvelope struct {
	Origin  string `json:"origin"`
	Event   string `json:"event"`
	Payload []byte `json:"payload"`
}

// RedisBridge relays hub broadcasts through Redis pub/sub so sessions on
// different nodes share a document channel. Presence stays node-local.
type RedisBridge struct {
	hub    *Hub
	client *redis.Client
	nodeID string
	logger *zap.Logger
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// NewRedisBridge subscribes to the shared channel namespace and wires itself
// as the hub's relay. Close releases the subscription.
func NewRedisBridge(ctx context.Context, hub *Hub, client *redis.Client, logger *zap.Logger) (*RedisBridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	pubsub := client.PSubscribe(runCtx, redisChannelPrefix+"*")
	// wait for the subscription confirmation; broadcasts relayed before the
	// server registers the PSUBSCRIBE would otherwise be lost
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	bridge := &RedisBridge{
		hub:    hub,
		client: client,
		nodeID: uuid.NewString(),
		logger: logger,
		pubsub: pubsub,
		cancel: cancel,
	}
	hub.SetRelay(bridge)

	go bridge.receive(runCtx)
	return bridge, nil
}

// Publish implements Relay.
func (b *RedisBridge) Publish(channelName, eventType string, payload []byte) error {
	envelope := redisEnvelope{
		Origin:  b.nodeID,
		Event:   eventType,
		Payload: payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return b.client.Publish(context.Background(), redisChannelPrefix+channelName, data).Err()
}

// Close stops the receive loop and the subscription.
func (b *RedisBridge) Close() error {
	b.cancel()
	return b.pubsub.Close()
}

func (b *RedisBridge) receive(ctx context.Context) {
	messages := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			b.handleMessage(message)
		}
	}
}

func (b *RedisBridge) handleMessage(message *redis.Message) {
	channelName := strings.TrimPrefix(message.Channel, redisChannelPrefix)
	var envelope redisEnvelope
	if err := json.Unmarshal([]byte(message.Payload), &envelope); err != nil {
		b.logger.Warn("discarding malformed relay message",
			zap.String("channel", channelName), zap.Error(err))
		return
	}
	if envelope.Origin == b.nodeID {
		return
	}
	b.hub.InjectRemote(channelName, envelope.Event, envelope.Payload)
}
