package domain

import (
	"context"

	"github.com/google/uuid"
)

// ContractorRepository reads contractor identity at connection time. Writes
// belong to the account system.
type ContractorRepository interface {
	GetByID(ctx context.Context, id string) (*ContractorProfile, error)
}

// NotificationRepository is the durable audit trail of every notification
// sent. Created once per (event, contractor) pair; only read/ack state is
// mutated afterwards.
type NotificationRepository interface {
	// CreateBulk writes one record per contractor id. Expiry is resolved to
	// an absolute timestamp here, not lazily on read.
	CreateBulk(ctx context.Context, contractorIDs []string, draft NotificationDraft) ([]Notification, error)
	ListForContractor(ctx context.Context, contractorID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

// TxManager runs fn inside a database transaction carried via context.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
