package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/app/server/handlers"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"
)

type Server struct {
	mux                 *http.ServeMux
	log                 *slog.Logger
	name                string
	addr                string
	authHandler         *handlers.AuthHandler
	wsHandler           *handlers.WSHandler
	debugHandler        *handlers.DebugHandler
	broadcastHandler    *handlers.BroadcastHandler
	notificationHandler *handlers.NotificationHandler
	tokenSvc            *services.TokenService
}

func NewServer(
	log *slog.Logger,
	name string,
	addr string,
	contractorSvc *services.ContractorService,
	tokenSvc *services.TokenService,
	gateway services.IConnectionGateway,
	dispatcher services.IBroadcastDispatcher,
	rooms contracts.Registry,
	presence contracts.PresenceStore,
	store domain.NotificationRepository,
	tx domain.TxManager,
) *Server {
	s := &Server{
		mux:                 http.NewServeMux(),
		log:                 log,
		name:                name,
		addr:                addr,
		authHandler:         handlers.NewAuthHandler(contractorSvc, tokenSvc),
		wsHandler:           handlers.NewWSHandler(gateway, contractorSvc, rooms),
		debugHandler:        handlers.NewDebugHandler(rooms, presence),
		broadcastHandler:    handlers.NewBroadcastHandler(dispatcher),
		notificationHandler: handlers.NewNotificationHandler(store, tx),
		tokenSvc:            tokenSvc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)
	logged := middleware.RequestLogger(s.log)
	traced := middleware.TracerMiddleware(s.name)

	// Public
	s.mux.Handle("POST /auth/token", logged(http.HandlerFunc(s.authHandler.IssueToken)))

	// Contractor socket: identity comes from the JWT, injected into context
	// by the auth middleware before the upgrade.
	s.mux.Handle("/ws", traced(logged(auth(http.HandlerFunc(s.wsHandler.Handler)))))

	// Consumed by the task/order layer after it persists a change.
	s.mux.Handle("POST /internal/broadcast/task", traced(logged(http.HandlerFunc(s.broadcastHandler.BroadcastTask))))
	s.mux.Handle("POST /internal/broadcast/system", traced(logged(http.HandlerFunc(s.broadcastHandler.BroadcastSystem))))

	// Contractor-facing notification records.
	s.mux.Handle("GET /notifications", logged(auth(http.HandlerFunc(s.notificationHandler.List))))
	s.mux.Handle("POST /notifications/read", logged(auth(http.HandlerFunc(s.notificationHandler.MarkRead))))

	// Operational tooling; gated upstream.
	s.mux.Handle("GET /debug/rooms", logged(http.HandlerFunc(s.debugHandler.RoomStats)))
	s.mux.Handle("GET /debug/rooms/info", logged(http.HandlerFunc(s.debugHandler.RoomInfo)))
	s.mux.Handle("GET /debug/contractors/{id}/rooms", logged(http.HandlerFunc(s.debugHandler.ContractorRooms)))
	s.mux.Handle("GET /debug/presence", logged(http.HandlerFunc(s.debugHandler.OnlineContractors)))
}

func (s *Server) Start() error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket sessions outlive any sane write timeout
	}
	s.log.Info("server starting", "addr", s.addr)
	return server.ListenAndServe()
}
