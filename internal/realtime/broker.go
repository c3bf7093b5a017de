package realtime

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Broker 跨实例广播。为 nil 时 Hub 只在本进程内分发
type Broker interface {
	Publish(ctx context.Context, payload []byte) error
	// Listen 阻塞接收广播直到 ctx 结束
	Listen(ctx context.Context, deliver func(payload []byte)) error
}

// RedisBroker 基于 Redis Pub/Sub，每个实例都会收到自己发布的消息
type RedisBroker struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroker(rdb *redis.Client, channel string) *RedisBroker {
	return &RedisBroker{rdb: rdb, channel: channel}
}

func (b *RedisBroker) Publish(ctx context.Context, payload []byte) error {
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Listen(ctx context.Context, deliver func(payload []byte)) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// 等待订阅确认，避免启动期间丢消息
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deliver([]byte(msg.Payload))
		}
	}
}
