package contracts

import (
	"context"
	"time"
)

// PresenceStore mirrors which contractors are online into Redis for the
// operational/debug surface. The in-process registry stays authoritative for
// targeting; this mirror only has to be eventually right.
type PresenceStore interface {
	// MarkOnline refreshes the contractor's heartbeat with a TTL-based entry.
	MarkOnline(ctx context.Context, contractorID string, ttl time.Duration) error
	MarkOffline(ctx context.Context, contractorID string) error
	// OnlineContractors returns ids whose heartbeat is within the window.
	OnlineContractors(ctx context.Context) ([]string, error)
}
