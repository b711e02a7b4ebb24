package services

import (
	"context"
	"errors"
	"testing"

	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
)

type fakeContractorRepo struct {
	profiles map[string]*domain.ContractorProfile
	err      error
}

func (r *fakeContractorRepo) GetByID(_ context.Context, id string) (*domain.ContractorProfile, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.profiles[id], nil
}

func TestGetProfile(t *testing.T) {
	repo := &fakeContractorRepo{profiles: map[string]*domain.ContractorProfile{
		"active":   {ID: "active", Name: "Alamo Bounce", IsActive: true},
		"inactive": {ID: "inactive", IsActive: false},
	}}
	svc := NewContractorService(testLogger(), repo)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"active contractor", "active", nil},
		{"inactive contractor rejected", "inactive", domain.ErrContractorInactive},
		{"unknown contractor", "ghost", domain.ErrContractorNotFound},
		{"empty id", "", domain.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := svc.GetProfile(context.Background(), tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (profile == nil || profile.Name != "Alamo Bounce") {
				t.Errorf("profile = %+v", profile)
			}
		})
	}
}

func TestGetProfilePropagatesRepoError(t *testing.T) {
	repoErr := errors.New("connection refused")
	svc := NewContractorService(testLogger(), &fakeContractorRepo{err: repoErr})
	if _, err := svc.GetProfile(context.Background(), "X"); !errors.Is(err, repoErr) {
		t.Errorf("err = %v, want the repository error", err)
	}
}
