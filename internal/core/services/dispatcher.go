package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/geo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var dispatcherTracer = otel.Tracer("broadcast-dispatcher")

// RetryPolicy is the explicit retry loop configuration for live-socket
// emission: a fixed number of attempts with a fixed delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

type IBroadcastDispatcher interface {
	BroadcastNewTask(ctx context.Context, task domain.Task, contractorIDs []string) domain.DeliveryResult
	BroadcastTaskAssigned(ctx context.Context, task domain.Task, contractorID string) domain.DeliveryResult
	BroadcastTaskUpdate(ctx context.Context, event string, task domain.Task, contractorIDs []string) domain.DeliveryResult
	BroadcastToRadius(ctx context.Context, event string, task domain.Task, lat, lng, radiusKm float64) domain.DeliveryResult
	BroadcastToSkills(ctx context.Context, event string, task domain.Task, skills []string) domain.DeliveryResult
	BroadcastSystemNotification(ctx context.Context, n domain.SystemNotification, target string, contractorIDs []string) domain.DeliveryResult
}

// BroadcastDispatcher is the single entry point the order/task layer calls
// after persisting a domain change. Live-socket delivery and offline push are
// independent, both-attempted paths: a contractor briefly disconnected when
// the live frames go out is still reached through the push gateway. Nothing
// here propagates an error to the caller; broadcast is best-effort and must
// never roll back the domain change that triggered it.
type BroadcastDispatcher struct {
	log         *slog.Logger
	rooms       contracts.Registry
	notifier    IOfflineNotifier
	store       domain.NotificationRepository
	retry       RetryPolicy
	sendTimeout time.Duration
}

func NewBroadcastDispatcher(
	log *slog.Logger,
	rooms contracts.Registry,
	notifier IOfflineNotifier,
	store domain.NotificationRepository,
	retry RetryPolicy,
	sendTimeout time.Duration,
) *BroadcastDispatcher {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &BroadcastDispatcher{
		log:         log,
		rooms:       rooms,
		notifier:    notifier,
		store:       store,
		retry:       retry,
		sendTimeout: sendTimeout,
	}
}

func (d *BroadcastDispatcher) BroadcastNewTask(
	ctx context.Context,
	task domain.Task,
	contractorIDs []string,
) domain.DeliveryResult {
	return d.dispatchTask(ctx, domain.EventTaskNew, task, contractorIDs)
}

func (d *BroadcastDispatcher) BroadcastTaskAssigned(
	ctx context.Context,
	task domain.Task,
	contractorID string,
) domain.DeliveryResult {
	return d.dispatchTask(ctx, domain.EventTaskAssigned, task, []string{contractorID})
}

// BroadcastTaskUpdate handles the remaining task lifecycle events
// (updated/claimed/cancelled/completed) toward an explicit contractor set.
func (d *BroadcastDispatcher) BroadcastTaskUpdate(
	ctx context.Context,
	event string,
	task domain.Task,
	contractorIDs []string,
) domain.DeliveryResult {
	return d.dispatchTask(ctx, event, task, contractorIDs)
}

// BroadcastToRadius targets every contractor whose last reported location is
// within radiusKm of the task site.
func (d *BroadcastDispatcher) BroadcastToRadius(
	ctx context.Context,
	event string,
	task domain.Task,
	lat, lng, radiusKm float64,
) domain.DeliveryResult {
	ids := d.rooms.ContractorsInRadius(lat, lng, radiusKm)
	if len(ids) == 0 {
		d.log.InfoContext(ctx, "dispatcher - broadcast to radius - no contractors in range",
			"event", event, "task_id", task.ID, "radius_km", radiusKm)
		return domain.DeliveryResult{Success: true, Message: "no contractors in radius"}
	}
	return d.dispatchTask(ctx, event, task, ids)
}

// BroadcastToSkills targets connected contractors whose skills match the
// query set (case-insensitive substring, either direction).
func (d *BroadcastDispatcher) BroadcastToSkills(
	ctx context.Context,
	event string,
	task domain.Task,
	skills []string,
) domain.DeliveryResult {
	ids := d.rooms.ContractorsWithSkills(skills)
	if len(ids) == 0 {
		d.log.InfoContext(ctx, "dispatcher - broadcast to skills - no matching contractors",
			"event", event, "task_id", task.ID)
		return domain.DeliveryResult{Success: true, Message: "no contractors with matching skills"}
	}
	return d.dispatchTask(ctx, event, task, ids)
}

func (d *BroadcastDispatcher) dispatchTask(
	ctx context.Context,
	event string,
	task domain.Task,
	contractorIDs []string,
) domain.DeliveryResult {
	ctx, span := dispatcherTracer.Start(ctx, "BroadcastDispatcher.dispatchTask", trace.WithAttributes(
		attribute.String("event", event),
		attribute.String("task_id", task.ID),
		attribute.Int("target_count", len(contractorIDs)),
	))
	defer span.End()

	frame, err := domain.NewTaskFrame(event, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown event type")
		d.log.ErrorContext(ctx, "dispatcher - dispatch task - rejected event", "event", event, "err", err)
		return domain.DeliveryResult{Success: false, Message: "event rejected", Error: err.Error()}
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		span.RecordError(err)
		return domain.DeliveryResult{Success: false, Message: "frame encoding failed", Error: err.Error()}
	}

	// Resolve targets while no network call is in flight; the snapshot lets
	// the registry lock go before any I/O starts.
	var clients []contracts.Client
	live := 0
	for _, id := range contractorIDs {
		cs := d.rooms.ClientsFor(id)
		if len(cs) > 0 {
			live++
		}
		clients = append(clients, cs...)
	}
	span.SetAttributes(attribute.Int("live_contractors", live), attribute.Int("live_sockets", len(clients)))

	// Offline push runs concurrently with live emission; neither path waits
	// on, cancels, or rolls back the other.
	var wg sync.WaitGroup
	var offline domain.DeliveryResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		offline = d.notifier.SendTask(ctx, task, contractorIDs)
	}()

	liveErr := d.emit(ctx, clients, raw)

	d.record(ctx, contractorIDs, taskDraft(event, task))
	wg.Wait()

	result := domain.DeliveryResult{Success: true}
	switch {
	case liveErr != nil && !offline.Success:
		result = domain.DeliveryResult{Success: false, Message: "live and offline delivery failed", Error: liveErr.Error()}
	case liveErr != nil:
		result = domain.DeliveryResult{Success: false, Message: "live delivery failed, offline push sent", Error: liveErr.Error()}
	case !offline.Success:
		result = domain.DeliveryResult{Success: false, Message: "live frames sent, offline push failed", Error: offline.Error}
	default:
		result.Message = fmt.Sprintf("broadcast %s to %d contractors (%d live)", event, len(contractorIDs), live)
	}
	if !result.Success {
		span.SetStatus(codes.Error, result.Message)
		d.log.WarnContext(ctx, "dispatcher - dispatch task - partial or failed delivery",
			"event", event, "task_id", task.ID, "detail", result.Message, "err", result.Error)
	} else {
		d.log.InfoContext(ctx, "dispatcher - dispatch task - delivered",
			"event", event, "task_id", task.ID, "targets", len(contractorIDs), "live", live)
	}
	return result
}

// BroadcastSystemNotification reaches one contractor, an explicit set, or,
// when neither is given, everyone currently in the global room.
func (d *BroadcastDispatcher) BroadcastSystemNotification(
	ctx context.Context,
	n domain.SystemNotification,
	target string,
	contractorIDs []string,
) domain.DeliveryResult {
	ctx, span := dispatcherTracer.Start(ctx, "BroadcastDispatcher.BroadcastSystemNotification")
	defer span.End()

	event := domain.EventNotificationSystem
	notifType := domain.NotificationSystem
	var ids []string
	switch {
	case target != "":
		ids = []string{target}
		event = domain.EventNotificationPersonal
		notifType = domain.NotificationPersonal
	case len(contractorIDs) > 0:
		ids = contractorIDs
	default:
		ids = d.rooms.MembersOf(geo.GlobalRoom)
	}
	span.SetAttributes(attribute.String("event", event), attribute.Int("target_count", len(ids)))
	if len(ids) == 0 {
		return domain.DeliveryResult{Success: true, Message: "no connected contractors"}
	}

	priority := n.Priority
	if priority == "" {
		priority = domain.NotifyNormal
	}
	raw, err := json.Marshal(domain.NotificationFrame{
		Type:      event,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  priority,
		Data:      n.Data,
		Timestamp: time.Now(),
	})
	if err != nil {
		span.RecordError(err)
		return domain.DeliveryResult{Success: false, Message: "frame encoding failed", Error: err.Error()}
	}

	var clients []contracts.Client
	for _, id := range ids {
		clients = append(clients, d.rooms.ClientsFor(id)...)
	}

	var wg sync.WaitGroup
	var offline domain.DeliveryResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		offline = d.notifier.SendSystem(ctx, n, ids)
	}()

	liveErr := d.emit(ctx, clients, raw)

	d.record(ctx, ids, domain.NotificationDraft{
		Type:     notifType,
		Priority: priority,
		Title:    n.Title,
		Message:  n.Message,
		Data:     n.Data,
	})
	wg.Wait()

	if liveErr != nil || !offline.Success {
		errMsg := offline.Error
		if liveErr != nil {
			errMsg = liveErr.Error()
		}
		span.SetStatus(codes.Error, "delivery incomplete")
		d.log.WarnContext(ctx, "dispatcher - system notification - partial or failed delivery",
			"event", event, "targets", len(ids), "err", errMsg)
		return domain.DeliveryResult{Success: false, Message: "system notification partially delivered", Error: errMsg}
	}
	d.log.InfoContext(ctx, "dispatcher - system notification - delivered", "event", event, "targets", len(ids))
	return domain.DeliveryResult{Success: true, Message: fmt.Sprintf("notification sent to %d contractors", len(ids))}
}

// emit pushes one encoded frame to every snapshot client. A socket that
// closes mid-broadcast just misses the frame; it is not an error for the
// broadcast as a whole unless the transport reports one.
func (d *BroadcastDispatcher) emit(ctx context.Context, clients []contracts.Client, raw []byte) error {
	var last error
	for _, c := range clients {
		if err := d.sendWithRetry(ctx, c, raw); err != nil {
			last = err
			d.log.WarnContext(ctx, "dispatcher - emit - socket send failed after retries",
				"contractor_id", c.ContractorID(), "socket_id", c.ID(), "err", err)
		}
	}
	return last
}

func (d *BroadcastDispatcher) sendWithRetry(ctx context.Context, c contracts.Client, raw []byte) error {
	var last error
	for attempt := 1; attempt <= d.retry.MaxAttempts; attempt++ {
		sendCtx := ctx
		cancel := context.CancelFunc(func() {})
		if d.sendTimeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		}
		err := c.Send(sendCtx, raw)
		cancel()
		if err == nil {
			return nil
		}
		last = err
		if attempt == d.retry.MaxAttempts {
			break
		}
		timer := time.NewTimer(d.retry.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return last
}

// record writes the durable audit rows. Failures are logged, never surfaced:
// the record is a side effect, independent of delivery outcome.
func (d *BroadcastDispatcher) record(ctx context.Context, ids []string, draft domain.NotificationDraft) {
	if _, err := d.store.CreateBulk(ctx, ids, draft); err != nil {
		d.log.ErrorContext(ctx, "dispatcher - record - notification store write failed",
			"type", string(draft.Type), "targets", len(ids), "err", err)
	}
}

func taskDraft(event string, task domain.Task) domain.NotificationDraft {
	title := "Task Update"
	switch event {
	case domain.EventTaskNew:
		title = "New Task Available"
	case domain.EventTaskAssigned:
		title = "Task Assigned to You"
	case domain.EventTaskCancelled:
		title = "Task Cancelled"
	case domain.EventTaskCompleted:
		title = "Task Completed"
	}
	return domain.NotificationDraft{
		Type:     domain.NotificationTask,
		Priority: domain.PushPriority(task.Priority),
		Title:    title,
		Message:  fmt.Sprintf("%s - $%.2f at %s", task.Title, task.PaymentAmount, task.Address),
		Data: map[string]any{
			"taskId":        task.ID,
			"taskType":      string(task.Type),
			"event":         event,
			"paymentAmount": task.PaymentAmount,
			"address":       task.Address,
		},
		ExpiresInHours: 24,
	}
}
