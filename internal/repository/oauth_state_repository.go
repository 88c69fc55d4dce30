package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/socialflowhq/socialflow/internal/models"
)

type OAuthStateRepository interface {
	Create(ctx context.Context, s *models.OAuthState) error
	Consume(ctx context.Context, state string) (*models.OAuthState, error)
	DeleteExpired(ctx context.Context, now time.Time) error
}

type oauthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) Create(ctx context.Context, s *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, user_id, organization_id, redirect_url, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, s.State, s.UserID, s.OrganizationID, s.RedirectURL, s.ExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Consume deletes and returns the state record in one statement, so a state
// value can never be redeemed twice. Unknown states return nil.
func (r *oauthStateRepository) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state = $1
		RETURNING state, user_id, organization_id, redirect_url, expires_at, created_at
	`

	var s models.OAuthState
	var orgID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, state).Scan(
		&s.State, &s.UserID, &orgID, &s.RedirectURL, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	if orgID.Valid {
		s.OrganizationID = &orgID.Int64
	}
	return &s, nil
}

func (r *oauthStateRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	query := `DELETE FROM oauth_states WHERE expires_at < $1`
	_, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
