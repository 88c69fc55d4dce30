package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/instagram"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/transfer"
	"github.com/socialflowhq/socialflow/pkg/utils"
)

// OAuthService drives the account-linking handshake: it mints the single-use
// state that protects the callback, exchanges the authorization code, and
// persists the linked account with its sealed token.
type OAuthService interface {
	Initiate(ctx context.Context, userID int64, organizationID *int64, redirectURL string) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*transfer.OAuthCallbackResult, error)
}

type oauthService struct {
	cfg      config.Config
	states   repository.OAuthStateRepository
	accounts repository.ConnectedAccountRepository
	ig       instagram.Client
	vault    *utils.TokenVault
}

func NewOAuthService(
	cfg config.Config,
	states repository.OAuthStateRepository,
	accounts repository.ConnectedAccountRepository,
	ig instagram.Client,
	vault *utils.TokenVault) OAuthService {
	return &oauthService{
		cfg:      cfg,
		states:   states,
		accounts: accounts,
		ig:       ig,
		vault:    vault,
	}
}

func (s *oauthService) Initiate(ctx context.Context, userID int64, organizationID *int64, redirectURL string) (string, error) {
	nonce, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if redirectURL == "" {
		redirectURL = s.cfg.FrontendURL + "/dashboard/accounts"
	}

	state := &models.OAuthState{
		State:          nonce,
		UserID:         userID,
		OrganizationID: organizationID,
		RedirectURL:    redirectURL,
		ExpiresAt:      time.Now().Add(s.cfg.StateTTL),
	}
	if err := s.states.Create(ctx, state); err != nil {
		return "", fmt.Errorf("error saving oauth state: %w", err)
	}

	return s.ig.AuthCodeURL(nonce), nil
}

func (s *oauthService) HandleCallback(ctx context.Context, code, state string) (*transfer.OAuthCallbackResult, error) {
	if code == "" || state == "" {
		return nil, models.ErrOAuthState
	}

	stored, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("error consuming oauth state: %w", err)
	}
	if stored == nil || stored.IsExpired(time.Now()) {
		return nil, models.ErrOAuthState
	}

	token, err := s.ig.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	profiles, err := s.ig.ListAccounts(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("unable to list linked accounts: %w", err)
	}

	encryptedToken, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}

	connected := 0
	for _, profile := range profiles {
		if !profile.IsBusiness() {
			continue
		}

		account := &models.ConnectedAccount{
			UserID:         stored.UserID,
			OrganizationID: stored.OrganizationID,
			IGUserID:       profile.UserID,
			PageID:         profile.ID,
			Username:       profile.Username,
			ProfilePicture: profile.ProfilePicture,
			FollowersCount: profile.FollowersCount,
			AccountType:    models.AccountType(profile.AccountType),
			AccessToken:    encryptedToken,
			TokenExpiresAt: token.ExpiresAt,
			IsActive:       true,
		}

		if _, err := s.accounts.Upsert(ctx, account); err != nil {
			return nil, fmt.Errorf("error saving connected account: %w", err)
		}
		connected++
	}

	if connected == 0 {
		return nil, models.ErrNoInstagramAccount
	}

	return &transfer.OAuthCallbackResult{
		ConnectedCount: connected,
		RedirectURL:    stored.RedirectURL,
	}, nil
}
