package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/app/registry"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
	"github.com/cboydstun/bounce-v3-sub014/internal/geo"
	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"

	"github.com/gorilla/websocket"
)

// trackedPresence records every presence call and rejects any made with an
// already-cancelled context, so tests can tell teardown ran with a live one.
type trackedPresence struct {
	mu      sync.Mutex
	online  map[string]int
	offline []string
}

func (p *trackedPresence) MarkOnline(ctx context.Context, contractorID string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online == nil {
		p.online = make(map[string]int)
	}
	p.online[contractorID]++
	return nil
}

func (p *trackedPresence) MarkOffline(ctx context.Context, contractorID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = append(p.offline, contractorID)
	return nil
}

func (p *trackedPresence) OnlineContractors(_ context.Context) ([]string, error) {
	return nil, nil
}

func (p *trackedPresence) marks(contractorID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[contractorID]
}

func (p *trackedPresence) wentOffline(contractorID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.offline {
		if id == contractorID {
			return true
		}
	}
	return false
}

type stubProfileRepo struct{}

func (stubProfileRepo) GetByID(_ context.Context, id string) (*domain.ContractorProfile, error) {
	return &domain.ContractorProfile{
		ID:         id,
		Name:       "Test Contractor",
		Skills:     []string{"delivery"},
		IsActive:   true,
		IsVerified: true,
	}, nil
}

func wsFixture(t *testing.T) (*httptest.Server, *registry.Registry, *trackedPresence) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	presence := &trackedPresence{}
	gateway := services.NewConnectionGateway(log, rooms, presence, 50, 5*time.Millisecond, time.Minute)
	contractors := services.NewContractorService(log, stubProfileRepo{})
	h := NewWSHandler(gateway, contractors, rooms)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.ContractorIDKey, r.URL.Query().Get("id"))
		ctx = context.WithValue(ctx, middleware.LoggerKey, log)
		h.Handler(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv, rooms, presence
}

func dialWS(t *testing.T, srv *httptest.Server, contractorID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?id=" + contractorID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readHandshake(t *testing.T, conn *websocket.Conn) domain.ConnectedFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame domain.ConnectedFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	return frame
}

func TestWSHandshake(t *testing.T) {
	srv, rooms, _ := wsFixture(t)
	conn := dialWS(t, srv, "X")

	frame := readHandshake(t, conn)
	if frame.Type != domain.EventConnected {
		t.Errorf("handshake type = %q, want %q", frame.Type, domain.EventConnected)
	}
	if frame.ContractorID != "X" {
		t.Errorf("handshake contractor = %q, want X", frame.ContractorID)
	}
	// identity + skill + global
	if len(frame.Rooms) < 3 {
		t.Errorf("handshake rooms = %v, want at least 3", frame.Rooms)
	}
	if !rooms.IsLive("X") {
		t.Error("contractor not live after handshake")
	}
}

func TestWSAbruptDropTearsDownSession(t *testing.T) {
	srv, rooms, presence := wsFixture(t)
	conn := dialWS(t, srv, "X")
	readHandshake(t, conn)

	// Slam the TCP connection shut without a close frame.
	conn.UnderlyingConn().Close()

	deadline := time.Now().Add(2 * time.Second)
	for presence.wentOffline("X") == false {
		if time.Now().After(deadline) {
			t.Fatal("contractor never marked offline after abrupt drop")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if rooms.IsLive("X") {
		t.Error("contractor still live after abrupt drop")
	}

	// The heartbeat must stop with the session: the online count freezes.
	time.Sleep(30 * time.Millisecond)
	before := presence.marks("X")
	time.Sleep(40 * time.Millisecond)
	if after := presence.marks("X"); after != before {
		t.Errorf("presence refreshed after disconnect: %d -> %d", before, after)
	}
}

func TestWSCleanCloseTearsDownSession(t *testing.T) {
	srv, rooms, presence := wsFixture(t)
	conn := dialWS(t, srv, "X")
	readHandshake(t, conn)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("write close: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for presence.wentOffline("X") == false {
		if time.Now().After(deadline) {
			t.Fatal("contractor never marked offline after clean close")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if rooms.IsLive("X") {
		t.Error("contractor still live after clean close")
	}
}
