package contracts

import (
	"context"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
)

// Registry is the sole owner of room membership state. Every operation is
// safe under concurrent invocation from connection-handling goroutines, and
// every mutation keeps the room→members / contractor→rooms maps symmetric.
type Registry interface {
	// Register tracks a live socket and the contractor's profile snapshot.
	Register(c Client, profile domain.ContractorProfile)
	// Unregister drops the socket and returns how many sockets the contractor
	// still has. Membership cleanup is the caller's decision.
	Unregister(c Client) int

	Join(contractorID, room string)
	Leave(contractorID, room string)
	// LeaveAll removes the contractor from every room and clears its location.
	LeaveAll(contractorID string)
	// SetLocation atomically swaps the contractor's location room so no
	// observer sees it in two location rooms or in neither.
	SetLocation(contractorID string, lat, lng, radiusKm float64)

	RoomsFor(contractorID string) []string
	MembersOf(room string) []string
	// StatsByRoom counts members per room, filtered to recognized room names.
	StatsByRoom() map[string]int
	ContractorsInRadius(lat, lng, radiusKm float64) []string
	ContractorsWithSkills(skills []string) []string

	// ClientsInRoom snapshots the live sockets of a room's members so callers
	// can perform network I/O without holding the registry lock.
	ClientsInRoom(room string) []Client
	ClientsFor(contractorID string) []Client
	IsLive(contractorID string) bool
}

// Client is the minimal surface the registry and dispatcher need from an
// individual transport session.
type Client interface {
	// ID identifies this socket; one contractor may hold several.
	ID() string
	ContractorID() string
	ConnectedAt() time.Time
	Send(ctx context.Context, data []byte) error
	Close()
}
