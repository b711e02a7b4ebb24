package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/geo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var gatewayTracer = otel.Tracer("connection-gateway")

type IConnectionGateway interface {
	// HandleConnect joins the contractor's identity, skill and global rooms.
	HandleConnect(ctx context.Context, c contracts.Client, profile *domain.ContractorProfile) error
	// HandleLocationUpdate swaps the contractor's location room.
	HandleLocationUpdate(ctx context.Context, c contracts.Client, lat, lng, radiusKm float64) error
	// HandleDisconnect tears down membership once the last socket is gone.
	HandleDisconnect(ctx context.Context, c contracts.Client)
	// HandleHeartbeat refreshes the presence mirror until ctx is cancelled.
	HandleHeartbeat(ctx context.Context, c contracts.Client)
}

// ConnectionGateway bridges authenticated transport sessions to room
// membership. It never sends frames itself; delivery belongs to the
// dispatcher. Failures here are logged and swallowed so a bad join can never
// crash the connection-handling path.
type ConnectionGateway struct {
	log               *slog.Logger
	rooms             contracts.Registry
	presence          contracts.PresenceStore
	defaultRadiusKm   float64
	heartbeatInterval time.Duration
	presenceTTL       time.Duration
}

func NewConnectionGateway(
	log *slog.Logger,
	rooms contracts.Registry,
	presence contracts.PresenceStore,
	defaultRadiusKm float64,
	heartbeatInterval time.Duration,
	presenceTTL time.Duration,
) *ConnectionGateway {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = domain.DefaultRadiusKm
	}
	return &ConnectionGateway{
		log:               log,
		rooms:             rooms,
		presence:          presence,
		defaultRadiusKm:   defaultRadiusKm,
		heartbeatInterval: heartbeatInterval,
		presenceTTL:       presenceTTL,
	}
}

func (g *ConnectionGateway) HandleConnect(
	ctx context.Context,
	c contracts.Client,
	profile *domain.ContractorProfile,
) error {
	ctx, span := gatewayTracer.Start(ctx, "ConnectionGateway.HandleConnect")
	defer span.End()
	id := c.ContractorID()
	if id == "" || profile == nil {
		span.RecordError(domain.ErrUnauthenticated)
		g.log.ErrorContext(ctx, "gateway - handle connect - unauthenticated connection, no rooms joined")
		return domain.ErrUnauthenticated
	}
	span.SetAttributes(attribute.String("contractor.id", id))
	g.rooms.Register(c, *profile)
	g.rooms.Join(id, geo.ContractorRoomKey(id))
	for _, skill := range profile.Skills {
		if strings.TrimSpace(skill) == "" {
			continue
		}
		g.rooms.Join(id, geo.SkillRoomKey(skill))
	}
	g.rooms.Join(id, geo.GlobalRoom)
	if err := g.presence.MarkOnline(ctx, id, g.presenceTTL); err != nil {
		// mirror only; the registry stays authoritative
		g.log.WarnContext(ctx, "gateway - handle connect - presence mark online failed", "contractor_id", id, "err", err)
	}
	g.log.InfoContext(ctx, "gateway - handle connect - rooms joined",
		"contractor_id", id, "socket_id", c.ID(), "skills", len(profile.Skills))
	return nil
}

func (g *ConnectionGateway) HandleLocationUpdate(
	ctx context.Context,
	c contracts.Client,
	lat, lng, radiusKm float64,
) error {
	id := c.ContractorID()
	if id == "" {
		g.log.ErrorContext(ctx, "gateway - handle location update - unauthenticated connection")
		return domain.ErrUnauthenticated
	}
	if !g.rooms.IsLive(id) {
		g.log.ErrorContext(ctx, "gateway - handle location update - contractor not registered", "contractor_id", id)
		return domain.ErrNotConnected
	}
	if radiusKm <= 0 {
		radiusKm = g.defaultRadiusKm
	}
	g.rooms.SetLocation(id, lat, lng, radiusKm)
	g.log.InfoContext(ctx, "gateway - handle location update - location room swapped",
		"contractor_id", id, "lat", lat, "lng", lng, "radius_km", radiusKm)
	return nil
}

// HandleDisconnect is safe to call even when HandleConnect never completed;
// unregistering an unknown socket is a no-op and LeaveAll on an unknown
// contractor clears nothing.
func (g *ConnectionGateway) HandleDisconnect(ctx context.Context, c contracts.Client) {
	id := c.ContractorID()
	if id == "" {
		return
	}
	remaining := g.rooms.Unregister(c)
	if remaining > 0 {
		g.log.InfoContext(ctx, "gateway - handle disconnect - socket closed, others remain",
			"contractor_id", id, "remaining", remaining)
		return
	}
	g.rooms.LeaveAll(id)
	if err := g.presence.MarkOffline(ctx, id); err != nil {
		g.log.WarnContext(ctx, "gateway - handle disconnect - presence mark offline failed", "contractor_id", id, "err", err)
	}
	g.log.InfoContext(ctx, "gateway - handle disconnect - left all rooms", "contractor_id", id)
}

func (g *ConnectionGateway) HandleHeartbeat(ctx context.Context, c contracts.Client) {
	id := c.ContractorID()
	if id == "" {
		return
	}
	ticker := time.NewTicker(g.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			g.log.Info("gateway - handle heartbeat - stopped", "contractor_id", id)
			return
		case <-ticker.C:
			_, span := gatewayTracer.Start(ctx, "Heartbeat.MarkOnline", trace.WithAttributes(
				attribute.String("contractor.id", id),
			))
			if err := g.presence.MarkOnline(ctx, id, g.presenceTTL); err != nil {
				span.RecordError(err)
				g.log.WarnContext(ctx, "gateway - handle heartbeat - presence refresh failed", "contractor_id", id, "err", err)
			}
			span.End()
		}
	}
}
