package services

import (
	"context"
	"log/slog"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
)

// ContractorService is the connect-time read of contractor identity. The
// account system owns the lifecycle; this only gates sockets on the active
// flag.
type ContractorService struct {
	log  *slog.Logger
	repo domain.ContractorRepository
}

func NewContractorService(log *slog.Logger, repo domain.ContractorRepository) *ContractorService {
	return &ContractorService{log: log, repo: repo}
}

func (s *ContractorService) GetProfile(ctx context.Context, id string) (*domain.ContractorProfile, error) {
	if id == "" {
		return nil, domain.ErrUnauthenticated
	}
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.log.ErrorContext(ctx, "contractor - get profile - lookup failed", "contractor_id", id, "err", err)
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrContractorNotFound
	}
	if !profile.IsActive {
		s.log.WarnContext(ctx, "contractor - get profile - inactive contractor rejected", "contractor_id", id)
		return nil, domain.ErrContractorInactive
	}
	return profile, nil
}
