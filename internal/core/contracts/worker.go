package contracts

import "context"

// EventConsumer drains the intake stream and turns each persisted domain
// event into a broadcast.
type EventConsumer interface {
	// Run starts the consumer loop for the task event stream.
	Run(ctx context.Context) error
	// ProcessEvent dispatches one stream entry, acks it, and trims it.
	ProcessEvent(ctx context.Context, messageID string, raw []byte) error
}
