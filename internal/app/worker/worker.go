package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
)

// TaskEventWorker drains the intake stream the task/order layer publishes to
// after persisting a change, and turns each entry into a broadcast.
type TaskEventWorker struct {
	log        *slog.Logger
	queue      contracts.EventQueue
	dispatcher services.IBroadcastDispatcher
	group      string
}

func NewTaskEventWorker(
	log *slog.Logger,
	queue contracts.EventQueue,
	dispatcher services.IBroadcastDispatcher,
	group string,
) contracts.EventConsumer {
	return &TaskEventWorker{
		log:        log,
		queue:      queue,
		dispatcher: dispatcher,
		group:      group,
	}
}

func (w *TaskEventWorker) Run(ctx context.Context) error {
	if err := w.queue.Subscribe(ctx, w.group, w.ProcessEvent); err != nil {
		w.log.ErrorContext(ctx, "worker - run - subscribe failed", "group", w.group, "err", err)
		return err
	}
	w.log.InfoContext(ctx, "worker - run - consuming task events", "group", w.group)
	return nil
}

func (w *TaskEventWorker) ProcessEvent(ctx context.Context, messageID string, raw []byte) error {
	var msg domain.TaskEventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.log.Error("worker - process event - bad payload", "message_id", messageID)
		// Poison entry; ack and trim so it never redelivers.
		w.ackAndTrim(ctx, messageID)
		return err
	}

	var result domain.DeliveryResult
	switch msg.Event {
	case domain.EventTaskNew:
		result = w.dispatcher.BroadcastNewTask(ctx, msg.Task, msg.ContractorIDs)
	case domain.EventTaskAssigned:
		if len(msg.ContractorIDs) > 0 {
			result = w.dispatcher.BroadcastTaskAssigned(ctx, msg.Task, msg.ContractorIDs[0])
		}
	default:
		result = w.dispatcher.BroadcastTaskUpdate(ctx, msg.Event, msg.Task, msg.ContractorIDs)
	}
	if !result.Success {
		// Best-effort: a failed broadcast is logged, not redelivered, so one
		// unreachable gateway cannot wedge the stream.
		w.log.WarnContext(ctx, "worker - process event - broadcast incomplete",
			"message_id", messageID, "event", msg.Event, "task_id", msg.Task.ID, "detail", result.Message)
	} else {
		w.log.InfoContext(ctx, "worker - process event - broadcast done",
			"message_id", messageID, "event", msg.Event, "task_id", msg.Task.ID)
	}
	w.ackAndTrim(ctx, messageID)
	return nil
}

func (w *TaskEventWorker) ackAndTrim(ctx context.Context, messageID string) {
	if err := w.queue.Ack(ctx, w.group, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - ack failed", "message_id", messageID, "err", err)
		return
	}
	if err := w.queue.Delete(ctx, messageID); err != nil {
		// already acked; trimming is just stream hygiene
		w.log.WarnContext(ctx, "worker - trim failed", "message_id", messageID, "err", err)
	}
}
