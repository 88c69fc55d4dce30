package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/service"
)

// TokenRefreshJob rotates long-lived tokens before they lapse, so scheduled
// posts do not fail on an expired credential.
type TokenRefreshJob struct {
	cfg      config.Config
	accounts repository.ConnectedAccountRepository
	svc      service.AccountService
}

func NewTokenRefreshJob(
	cfg config.Config,
	accounts repository.ConnectedAccountRepository,
	svc service.AccountService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cfg:      cfg,
		accounts: accounts,
		svc:      svc,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	cutoff := time.Now().Add(time.Duration(j.cfg.TokenExpiryThreshold) * 24 * time.Hour)
	accounts, err := j.accounts.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.ConnectedAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.svc.RefreshToken(ctx, acc.UserID, acc.ID); err != nil {
				slog.Info("unable to refresh token", "account_id", acc.ID, "error", err.Error())
			}
		}(acc)
	}

	wg.Wait()
}
