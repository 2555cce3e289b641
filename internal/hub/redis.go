package hub

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisHub fans payloads out over Redis pub/sub so pushes reach subscribers
// on any node.
type RedisHub struct {
	rdb *redis.Client
	log *logrus.Entry
}

func NewRedisHub(rdb *redis.Client, l *logrus.Logger) *RedisHub {
	return &RedisHub{rdb: rdb, log: l.WithField("component", "hub")}
}

func (h *RedisHub) Publish(ctx context.Context, addr string, payload any) error {
	b, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, addr, b).Err()
}

func (h *RedisHub) Subscribe(ctx context.Context, addr string) (<-chan []byte, func(), error) {
	pubsub := h.rdb.Subscribe(ctx, addr)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for m := range pubsub.Channel() {
			select {
			case out <- []byte(m.Payload):
			default:
				h.log.WithField("addr", addr).Warn("subscriber buffer full, message dropped")
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = pubsub.Close() })
	}
	return out, cancel, nil
}
