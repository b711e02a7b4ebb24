package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"

	"github.com/google/uuid"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// CreateBulk inserts one row per contractor in a single statement. The expiry
// timestamp is resolved here, at creation time.
func (r *NotificationRepo) CreateBulk(
	ctx context.Context,
	contractorIDs []string,
	draft domain.NotificationDraft,
) ([]domain.Notification, error) {
	if len(contractorIDs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(draft.Data)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var expiresAt *time.Time
	if draft.ExpiresInHours > 0 {
		t := now.Add(time.Duration(draft.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	records := make([]domain.Notification, 0, len(contractorIDs))
	values := make([]string, 0, len(contractorIDs))
	args := make([]any, 0, len(contractorIDs)*9)
	for i, contractorID := range contractorIDs {
		n := domain.Notification{
			ID:           uuid.New(),
			ContractorID: contractorID,
			Type:         draft.Type,
			Priority:     draft.Priority,
			Title:        draft.Title,
			Message:      draft.Message,
			Data:         draft.Data,
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
		}
		records = append(records, n)
		base := i * 9
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, n.ID, n.ContractorID, string(n.Type), string(n.Priority),
			n.Title, n.Message, data, n.ExpiresAt, n.CreatedAt)
	}
	query := `
		INSERT INTO notifications
			(id, contractor_id, type, priority, title, message, data, expires_at, created_at)
		VALUES ` + strings.Join(values, ", ")

	exec := GetExecutor(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *NotificationRepo) ListForContractor(
	ctx context.Context,
	contractorID string,
	limit int,
) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, contractor_id, type, priority, title, message, data,
		       is_read, read_at, expires_at, created_at
		FROM notifications
		WHERE contractor_id = $1
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT $2
	`, contractorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var data []byte
		if err := rows.Scan(
			&n.ID, &n.ContractorID, &n.Type, &n.Priority, &n.Title, &n.Message,
			&data, &n.IsRead, &n.ReadAt, &n.ExpiresAt, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND is_read = FALSE
	`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
