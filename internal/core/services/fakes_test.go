package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient records delivered frames and can be primed to fail the first N
// sends.
type fakeClient struct {
	id           string
	contractorID string

	mu       sync.Mutex
	frames   [][]byte
	failures int
}

func (c *fakeClient) ID() string             { return c.id }
func (c *fakeClient) ContractorID() string   { return c.contractorID }
func (c *fakeClient) ConnectedAt() time.Time { return time.Time{} }
func (c *fakeClient) Close()                 {}

func (c *fakeClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("transport down")
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// fakePush captures gateway calls and can fail the first N of them.
type fakePush struct {
	mu       sync.Mutex
	payloads []contracts.PushPayload
	failures int
}

func (p *fakePush) Send(_ context.Context, payload contracts.PushPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("push gateway unavailable")
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePush) calls() []contracts.PushPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.PushPayload(nil), p.payloads...)
}

type notifierCall struct {
	contractorIDs []string
	taskID        string
	title         string
}

// fakeNotifier records what the dispatcher asked it to push.
type fakeNotifier struct {
	mu     sync.Mutex
	tasks  []notifierCall
	system []notifierCall
	result domain.DeliveryResult
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{result: domain.DeliveryResult{Success: true, Message: "ok"}}
}

func (n *fakeNotifier) SendTask(_ context.Context, task domain.Task, contractorIDs []string) domain.DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, notifierCall{
		contractorIDs: append([]string(nil), contractorIDs...),
		taskID:        task.ID,
	})
	return n.result
}

func (n *fakeNotifier) SendSystem(_ context.Context, sn domain.SystemNotification, contractorIDs []string) domain.DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.system = append(n.system, notifierCall{
		contractorIDs: append([]string(nil), contractorIDs...),
		title:         sn.Title,
	})
	return n.result
}

func (n *fakeNotifier) taskCalls() []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifierCall(nil), n.tasks...)
}

func (n *fakeNotifier) systemCalls() []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifierCall(nil), n.system...)
}

type storeCall struct {
	contractorIDs []string
	draft         domain.NotificationDraft
}

// fakeStore implements domain.NotificationRepository in memory.
type fakeStore struct {
	mu    sync.Mutex
	calls []storeCall
	err   error
}

func (s *fakeStore) CreateBulk(_ context.Context, contractorIDs []string, draft domain.NotificationDraft) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, storeCall{
		contractorIDs: append([]string(nil), contractorIDs...),
		draft:         draft,
	})
	out := make([]domain.Notification, 0, len(contractorIDs))
	for _, id := range contractorIDs {
		out = append(out, domain.Notification{ID: uuid.New(), ContractorID: id, Type: draft.Type})
	}
	return out, nil
}

func (s *fakeStore) ListForContractor(_ context.Context, _ string, _ int) ([]domain.Notification, error) {
	return nil, nil
}

func (s *fakeStore) MarkRead(_ context.Context, _ uuid.UUID) error { return nil }

func (s *fakeStore) created() []storeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storeCall(nil), s.calls...)
}

// fakePresence tracks heartbeat state in memory.
type fakePresence struct {
	mu      sync.Mutex
	online  map[string]int
	offline []string
	err     error
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[string]int)}
}

func (p *fakePresence) MarkOnline(_ context.Context, contractorID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.online[contractorID]++
	return nil
}

func (p *fakePresence) MarkOffline(_ context.Context, contractorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.offline = append(p.offline, contractorID)
	return nil
}

func (p *fakePresence) OnlineContractors(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *fakePresence) marks(contractorID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[contractorID]
}
