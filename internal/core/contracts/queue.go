package contracts

import (
	"context"
)

// EventQueue is the intake stream the CRUD layer publishes persisted domain
// events onto. Consuming it in-process keeps room state single-owner while
// leaving the door open for other producers.
type EventQueue interface {
	// Publish appends an encoded TaskEventMessage to the stream.
	Publish(ctx context.Context, payload []byte) error
	// Subscribe reads the stream through a consumer group and hands each
	// entry to handler. It returns after starting the consumer loop.
	Subscribe(ctx context.Context, group string, handler func(ctx context.Context, messageID string, data []byte) error) error
	// Ack confirms an entry was fully processed.
	Ack(ctx context.Context, group, messageID string) error
	// Delete trims a processed entry from the stream.
	Delete(ctx context.Context, messageID string) error
}
