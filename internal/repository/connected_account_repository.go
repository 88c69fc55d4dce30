package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/socialflowhq/socialflow/internal/models"
)

type ConnectedAccountRepository interface {
	Upsert(ctx context.Context, a *models.ConnectedAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error)
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.ConnectedAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	UpdateToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error
	Deactivate(ctx context.Context, id int64) error
}

type connectedAccountRepository struct {
	db *sql.DB
}

func NewConnectedAccountRepository(db *sql.DB) ConnectedAccountRepository {
	return &connectedAccountRepository{db: db}
}

const accountColumns = `id, user_id, organization_id, ig_user_id, page_id, username,
	profile_picture_url, followers_count, account_type, access_token,
	token_expires_at, is_active, connected_at, updated_at`

// Upsert inserts the account or, when the user already linked this Instagram
// account, refreshes its token and profile in place. A re-link never
// duplicates a row.
func (r *connectedAccountRepository) Upsert(ctx context.Context, a *models.ConnectedAccount) (int64, error) {
	query := `
		INSERT INTO connected_accounts (
			user_id,
			organization_id,
			ig_user_id,
			page_id,
			username,
			profile_picture_url,
			followers_count,
			account_type,
			access_token,
			token_expires_at,
			is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		ON CONFLICT (user_id, ig_user_id) DO UPDATE SET
			page_id = EXCLUDED.page_id,
			username = EXCLUDED.username,
			profile_picture_url = EXCLUDED.profile_picture_url,
			followers_count = EXCLUDED.followers_count,
			account_type = EXCLUDED.account_type,
			access_token = EXCLUDED.access_token,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active = TRUE,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		a.UserID,
		a.OrganizationID,
		a.IGUserID,
		a.PageID,
		a.Username,
		a.ProfilePicture,
		a.FollowersCount,
		a.AccountType,
		a.AccessToken,
		a.TokenExpiresAt,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *connectedAccountRepository) GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM connected_accounts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return account, nil
}

func (r *connectedAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM connected_accounts WHERE user_id = $1 ORDER BY connected_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// ListExpiringBefore returns active accounts whose token expires before the
// cutoff, for the refresh sweep.
func (r *connectedAccountRepository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.ConnectedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM connected_accounts WHERE is_active = TRUE AND token_expires_at < $1`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *connectedAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := `SELECT 1 FROM connected_accounts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *connectedAccountRepository) UpdateToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE connected_accounts
		SET access_token = $2,
			token_expires_at = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, accessToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return models.ErrAccountNotFound
	}
	return nil
}

// Deactivate disconnects the account and drops the stored credential. The row
// itself is kept so publishing history stays attributable.
func (r *connectedAccountRepository) Deactivate(ctx context.Context, id int64) error {
	query := `
		UPDATE connected_accounts
		SET is_active = FALSE,
			access_token = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.ConnectedAccount, error) {
	var a models.ConnectedAccount
	var orgID sql.NullInt64

	err := row.Scan(&a.ID, &a.UserID, &orgID, &a.IGUserID, &a.PageID, &a.Username,
		&a.ProfilePicture, &a.FollowersCount, &a.AccountType, &a.AccessToken,
		&a.TokenExpiresAt, &a.IsActive, &a.ConnectedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		a.OrganizationID = &orgID.Int64
	}
	return &a, nil
}

func collectAccounts(rows *sql.Rows) ([]*models.ConnectedAccount, error) {
	var accounts []*models.ConnectedAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}
