package viewbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const redisChannel = "stationrt:viewbus"

// RedisMirror publishes every Bus message onto a Redis pub/sub channel so
// a remote dashboard process can subscribe without sharing memory with
// the station process — grounded on the teacher's
// queue.RedisNotifier Publish/Subscribe shape, generalized from a
// zero-payload wake signal to a JSON-encoded view message.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror wraps an existing client. The station owns the client's
// lifecycle; RedisMirror never closes it.
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func (m *RedisMirror) Publish(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("viewbus: encode mirrored message: %w", err)
	}
	return m.client.Publish(ctx, redisChannel, data).Err()
}

// Subscribe returns a channel of raw JSON payloads from the mirrored
// channel, for a remote dashboard process. The caller is responsible for
// decoding into the message types it understands.
func Subscribe(ctx context.Context, client *redis.Client) <-chan []byte {
	out := make(chan []byte, 32)
	pubsub := client.Subscribe(ctx, redisChannel)

	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
