package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
)

type memAccountRepo struct {
	accounts []*models.ConnectedAccount
}

func (r *memAccountRepo) Upsert(ctx context.Context, a *models.ConnectedAccount) (int64, error) {
	return a.ID, nil
}

func (r *memAccountRepo) GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error) {
	return nil, nil
}

func (r *memAccountRepo) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.ConnectedAccount, error) {
	var out []*models.ConnectedAccount
	for _, a := range r.accounts {
		if a.IsActive && a.TokenExpiresAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	return false, nil
}

func (r *memAccountRepo) UpdateToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error {
	return nil
}

func (r *memAccountRepo) Deactivate(ctx context.Context, id int64) error {
	return nil
}

type recordingAccountService struct {
	mu        sync.Mutex
	refreshed []int64
}

func (s *recordingAccountService) List(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error) {
	return nil, nil
}

func (s *recordingAccountService) Disconnect(ctx context.Context, userID, accountID int64) error {
	return nil
}

func (s *recordingAccountService) RefreshToken(ctx context.Context, userID, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = append(s.refreshed, accountID)
	return nil
}

func TestRefreshTokensTargetsExpiringAccounts(t *testing.T) {
	now := time.Now()
	repo := &memAccountRepo{accounts: []*models.ConnectedAccount{
		{ID: 1, UserID: 42, IsActive: true, TokenExpiresAt: now.Add(2 * 24 * time.Hour)},
		{ID: 2, UserID: 42, IsActive: true, TokenExpiresAt: now.Add(30 * 24 * time.Hour)},
		{ID: 3, UserID: 7, IsActive: false, TokenExpiresAt: now.Add(2 * 24 * time.Hour)},
		{ID: 4, UserID: 7, IsActive: true, TokenExpiresAt: now.Add(-time.Hour)},
	}}
	svc := &recordingAccountService{}

	cfg := config.Config{TokenExpiryThreshold: 7}
	NewTokenRefreshJob(cfg, repo, svc).RefreshTokens()

	assert.ElementsMatch(t, []int64{1, 4}, svc.refreshed)
}
