package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/app/server/ws"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WSHandler struct {
	gateway     services.IConnectionGateway
	contractors *services.ContractorService
	rooms       contracts.Registry
}

func NewWSHandler(
	gateway services.IConnectionGateway,
	contractors *services.ContractorService,
	rooms contracts.Registry,
) *WSHandler {
	return &WSHandler{
		gateway:     gateway,
		contractors: contractors,
		rooms:       rooms,
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	if log == nil {
		log = slog.Default()
	}
	span := trace.SpanFromContext(r.Context())
	contractorID, ok := r.Context().Value(middleware.ContractorIDKey).(string)
	if !ok || contractorID == "" {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing contractor_id")
		http.Error(w, "Unauthorized: contractor id missing", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("contractor.id", contractorID))

	// Profile read happens before the upgrade so rejects stay plain HTTP.
	profile, err := s.contractors.GetProfile(r.Context(), contractorID)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - profile load failed", "contractor_id", contractorID, "err", err)
		status := http.StatusForbidden
		if err == domain.ErrContractorNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	// The read loop ends on any disconnect, clean or abrupt; cancelling here
	// stops the heartbeat and write-loop goroutines in both cases.
	defer cancel()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetCloseHandler(func(code int, text string) error {
		log.Info("ws handler - ws closed", "contractor_id", contractorID)
		cancel()
		return nil
	})
	socket := ws.NewWebSocket(ctx, log, conn)
	client := ws.NewClient(ctx, socket, contractorID)

	if err := s.gateway.HandleConnect(ctx, client, profile); err != nil {
		// unreachable for targeted delivery until reconnect, but the
		// connection path itself must not crash
		log.ErrorContext(r.Context(), "ws handler - handle connect failed", "contractor_id", contractorID, "err", err)
		return
	}
	// Teardown must still reach the presence store after the session context
	// is cancelled.
	defer s.gateway.HandleDisconnect(context.WithoutCancel(ctx), client)

	handshake := domain.ConnectedFrame{
		Type:         domain.EventConnected,
		ContractorID: contractorID,
		Rooms:        s.rooms.RoomsFor(contractorID),
	}
	// The client's write loop is the connection's only writer; the handshake
	// goes through it like any broadcast frame.
	if raw, err := json.Marshal(handshake); err == nil {
		_ = client.Send(ctx, raw)
	}
	span.SetAttributes(attribute.Int("rooms.joined", len(handshake.Rooms)))
	log.InfoContext(r.Context(), "ws handler - connection established",
		"contractor_id", contractorID, "socket_id", client.ID())

	// Heartbeat
	go s.gateway.HandleHeartbeat(ctx, client)

	// Read loop
	socket.ReadLoop(func(data []byte) {
		s.handleInbound(ctx, log, client, data)
	})
}

func (s *WSHandler) handleInbound(ctx context.Context, log *slog.Logger, client *ws.RuntimeClient, data []byte) {
	var frame domain.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.WarnContext(ctx, "ws handler - inbound decode failed", "contractor_id", client.ContractorID(), "err", err)
		return
	}
	switch frame.Type {
	case domain.InboundLocationUpdate:
		if err := s.gateway.HandleLocationUpdate(ctx, client, frame.Lat, frame.Lng, frame.RadiusKm); err != nil {
			log.WarnContext(ctx, "ws handler - location update rejected", "contractor_id", client.ContractorID(), "err", err)
		}
	case domain.InboundPing:
		pong, _ := json.Marshal(domain.PongFrame{Type: domain.EventPong, Timestamp: time.Now()})
		_ = client.Send(ctx, pong)
	default:
		log.WarnContext(ctx, "ws handler - unrecognized inbound event",
			"contractor_id", client.ContractorID(), "event", frame.Type)
	}
}
