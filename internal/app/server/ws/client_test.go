package ws

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

	"github.com/gorilla/websocket"
)

// newSocketPair upgrades a real websocket over httptest and returns the
// server side wrapped in WebSocket plus the raw peer conn for assertions.
func newSocketPair(t *testing.T) (*WebSocket, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverSide := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	socket := NewWebSocket(context.Background(), log, <-serverSide)
	return socket, peer
}

func TestClientSendDeliversFrame(t *testing.T) {
	socket, peer := newSocketPair(t)
	client := NewClient(context.Background(), socket, "X")
	defer client.Close()

	if err := client.Send(context.Background(), []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(data) != `{"type":"ping"}` {
		t.Errorf("peer received %q", data)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	socket, _ := newSocketPair(t)
	client := NewClient(context.Background(), socket, "X")
	client.Close()

	// Once the client is closed every Send must be refused, not just the
	// ones that happen to observe the cancelled context before the buffer.
	for i := 0; i < 300; i++ {
		if err := client.Send(context.Background(), []byte("late")); err == nil {
			t.Fatalf("Send() after Close() accepted frame %d", i)
		}
	}
}

func TestClientCloseRacesSend(t *testing.T) {
	socket, _ := newSocketPair(t)
	client := NewClient(context.Background(), socket, "X")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = client.Send(context.Background(), []byte("burst"))
			}
		}()
	}
	time.Sleep(time.Millisecond)
	client.Close()
	wg.Wait()
}

func TestClientCloseIdempotent(t *testing.T) {
	socket, _ := newSocketPair(t)
	client := NewClient(context.Background(), socket, "X")
	client.Close()
	client.Close()
}
