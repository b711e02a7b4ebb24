package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisEventQueue is the task event intake stream. The CRUD layer appends a
// TaskEventMessage after every persisted domain change; the broadcast worker
// drains it through a consumer group.
type RedisEventQueue struct {
	rdb    *redis.Client
	stream string
	log    *slog.Logger
}

func NewRedisEventQueue(log *slog.Logger, rdb *redis.Client, stream string) *RedisEventQueue {
	return &RedisEventQueue{rdb: rdb, stream: stream, log: log}
}

func (q *RedisEventQueue) Publish(ctx context.Context, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: 1000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

func (q *RedisEventQueue) Subscribe(
	ctx context.Context,
	group string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	// Create group if not exists
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				// Read new messages (">")
				res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    group,
					Consumer: consumerName,
					Streams:  []string{q.stream, ">"},
					Count:    1,
					Block:    2 * time.Second,
				}).Result()
				if err != nil {
					if err != redis.Nil && ctx.Err() == nil {
						q.log.Warn("queue - subscribe - stream read error", "stream", q.stream, "err", err)
					}
					continue
				}
				for _, stream := range res {
					for _, msg := range stream.Messages {
						raw, ok := msg.Values["data"].(string)
						if !ok {
							continue
						}
						if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
							q.log.Warn("queue - subscribe - handler error", "stream", q.stream, "message_id", msg.ID, "err", err)
						}
					}
				}
			}
		}
	}()
	return nil
}

func (q *RedisEventQueue) Ack(ctx context.Context, group, messageID string) error {
	return q.rdb.XAck(ctx, q.stream, group, messageID).Err()
}

func (q *RedisEventQueue) Delete(ctx context.Context, messageID string) error {
	return q.rdb.XDel(ctx, q.stream, messageID).Err()
}
