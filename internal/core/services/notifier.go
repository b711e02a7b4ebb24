package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
)

type IOfflineNotifier interface {
	// SendTask pushes a task event to the gateway, one call per batch.
	SendTask(ctx context.Context, task domain.Task, contractorIDs []string) domain.DeliveryResult
	// SendSystem pushes an operator notification to the gateway.
	SendSystem(ctx context.Context, n domain.SystemNotification, contractorIDs []string) domain.DeliveryResult
}

// OfflineNotifier converts domain events into push payloads for contractors
// without a live socket (or with one; both paths always run). Retries grow
// the delay per attempt; a failure here never cancels the live-socket path.
type OfflineNotifier struct {
	log         *slog.Logger
	gateway     contracts.PushGateway
	maxAttempts int
	baseDelay   time.Duration
}

func NewOfflineNotifier(log *slog.Logger, gateway contracts.PushGateway, maxAttempts int, baseDelay time.Duration) *OfflineNotifier {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &OfflineNotifier{
		log:         log,
		gateway:     gateway,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

func (n *OfflineNotifier) SendTask(
	ctx context.Context,
	task domain.Task,
	contractorIDs []string,
) domain.DeliveryResult {
	if len(contractorIDs) == 0 {
		return domain.DeliveryResult{Success: true, Message: "no push targets"}
	}
	payload := contracts.PushPayload{
		Title:    "New Task Available",
		Message:  fmt.Sprintf("%s - $%.2f at %s", task.Title, task.PaymentAmount, task.Address),
		Priority: string(domain.PushPriority(task.Priority)),
		Data: map[string]any{
			"taskId":        task.ID,
			"taskType":      string(task.Type),
			"paymentAmount": task.PaymentAmount,
			"address":       task.Address,
		},
		ContractorIDs: contractorIDs,
		Actions: []contracts.PushAction{
			{Action: "view", Title: "View Task"},
			{Action: "dismiss", Title: "Dismiss"},
		},
		Metadata: contracts.PushMetadata{
			Source:    "task-broadcast",
			Timestamp: time.Now(),
			Critical:  task.Priority == domain.PriorityHigh,
		},
	}
	return n.deliver(ctx, payload)
}

func (n *OfflineNotifier) SendSystem(
	ctx context.Context,
	sn domain.SystemNotification,
	contractorIDs []string,
) domain.DeliveryResult {
	if len(contractorIDs) == 0 {
		return domain.DeliveryResult{Success: true, Message: "no push targets"}
	}
	priority := sn.Priority
	if priority == "" {
		priority = domain.NotifyNormal
	}
	pushPriority := priority
	if pushPriority == domain.NotifyCritical {
		pushPriority = domain.NotifyHigh
	}
	payload := contracts.PushPayload{
		Title:         sn.Title,
		Message:       sn.Message,
		Priority:      string(pushPriority),
		Data:          sn.Data,
		ContractorIDs: contractorIDs,
		Metadata: contracts.PushMetadata{
			Source:    "system-notification",
			Timestamp: time.Now(),
			Critical:  priority == domain.NotifyCritical,
		},
	}
	return n.deliver(ctx, payload)
}

// deliver makes one gateway call per batch; per-contractor failures inside
// the gateway are the gateway's own concern.
func (n *OfflineNotifier) deliver(ctx context.Context, payload contracts.PushPayload) domain.DeliveryResult {
	var last error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		err := n.gateway.Send(ctx, payload)
		if err == nil {
			n.log.InfoContext(ctx, "notifier - deliver - push accepted",
				"source", payload.Metadata.Source, "targets", len(payload.ContractorIDs), "attempt", attempt)
			return domain.DeliveryResult{
				Success: true,
				Message: fmt.Sprintf("push sent to %d contractors", len(payload.ContractorIDs)),
			}
		}
		last = err
		if attempt == n.maxAttempts {
			break
		}
		delay := n.baseDelay * time.Duration(attempt)
		n.log.WarnContext(ctx, "notifier - deliver - push retry scheduled",
			"source", payload.Metadata.Source, "attempt", attempt, "delay", delay, "err", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.DeliveryResult{Success: false, Message: "push cancelled", Error: ctx.Err().Error()}
		case <-timer.C:
		}
	}
	n.log.ErrorContext(ctx, "notifier - deliver - push failed after retries",
		"source", payload.Metadata.Source, "targets", len(payload.ContractorIDs), "err", last)
	return domain.DeliveryResult{Success: false, Message: "push delivery failed", Error: last.Error()}
}
