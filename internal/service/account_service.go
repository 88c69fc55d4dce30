package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/instagram"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/pkg/utils"
	"golang.org/x/sync/singleflight"
)

type AccountService interface {
	List(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
	RefreshToken(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	cfg      config.Config
	accounts repository.ConnectedAccountRepository
	ig       instagram.Client
	vault    *utils.TokenVault

	// Collapses concurrent refreshes for the same account into one call.
	refreshGroup singleflight.Group
}

func NewAccountService(
	cfg config.Config,
	accounts repository.ConnectedAccountRepository,
	ig instagram.Client,
	vault *utils.TokenVault) AccountService {
	return &accountService{
		cfg:      cfg,
		accounts: accounts,
		ig:       ig,
		vault:    vault,
	}
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting connected accounts: %w", err)
	}
	return accounts, nil
}

// Disconnect deactivates the link and removes the stored credential. The row
// survives so the post history keeps its owner.
func (s *accountService) Disconnect(ctx context.Context, userID, accountID int64) error {
	if userID == 0 || accountID == 0 {
		err := errors.New("user or account id is not valid")
		slog.Info(err.Error())
		return err
	}

	isOwner, err := s.accounts.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !isOwner {
		return models.ErrAccountNotFound
	}

	if err := s.accounts.Deactivate(ctx, accountID); err != nil {
		return fmt.Errorf("error disconnecting account: %w", err)
	}
	return nil
}

func (s *accountService) RefreshToken(ctx context.Context, userID, accountID int64) error {
	_, err, _ := s.refreshGroup.Do(strconv.FormatInt(accountID, 10), func() (interface{}, error) {
		return nil, s.refreshToken(ctx, userID, accountID)
	})
	return err
}

func (s *accountService) refreshToken(ctx context.Context, userID, accountID int64) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil || account.UserID != userID {
		return models.ErrAccountNotFound
	}
	if !account.IsActive {
		return models.ErrAccountInactive
	}

	accessToken, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		return err
	}

	token, err := s.ig.RefreshToken(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTokenRefresh, err)
	}

	encryptedToken, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}

	account.UpdateToken(encryptedToken, token.ExpiresAt)
	if err := s.accounts.UpdateToken(ctx, account.ID, account.AccessToken, account.TokenExpiresAt); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTokenRefresh, err)
	}
	return nil
}
