package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
)

type ContractorRepo struct {
	db *sql.DB
}

func NewContractorRepo(db *sql.DB) *ContractorRepo {
	return &ContractorRepo{db: db}
}

// GetByID reads the connect-time identity snapshot. Skills are stored as a
// jsonb array.
func (r *ContractorRepo) GetByID(ctx context.Context, id string) (*domain.ContractorProfile, error) {
	if id == "" {
		return nil, domain.ErrUnauthenticated
	}
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, name, skills, is_active, is_verified
		FROM contractors
		WHERE id = $1
	`, id)

	var p domain.ContractorProfile
	var skills []byte
	err := row.Scan(&p.ID, &p.Name, &skills, &p.IsActive, &p.IsVerified)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrContractorNotFound
		}
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &p.Skills); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
