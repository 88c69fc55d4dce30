package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/socialflowhq/socialflow/internal/models"
)

// PostFilter narrows List results. Zero values mean "no constraint".
type PostFilter struct {
	UserID    int64
	AccountID int64
	Status    models.PostStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type ScheduledPostRepository interface {
	Create(ctx context.Context, p *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	List(ctx context.Context, f PostFilter) ([]*models.ScheduledPost, error)
	ListDue(ctx context.Context, now time.Time, retryCap int, retryBackoff time.Duration) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, id int64) (bool, error)
	CancelIfNotTerminal(ctx context.Context, id int64) (bool, error)
	UpdateIfPending(ctx context.Context, p *models.ScheduledPost) (bool, error)
	UpdateIfProcessing(ctx context.Context, p *models.ScheduledPost) (bool, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const postColumns = `id, account_id, user_id, media_urls, caption, media_type,
	thumbnail_url, scheduled_for, timezone, status, container_id,
	published_media_id, error_message, retry_count, last_retry_at,
	published_at, created_at, updated_at`

func (r *scheduledPostRepository) Create(ctx context.Context, p *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (
			account_id, user_id, media_urls, caption, media_type,
			thumbnail_url, scheduled_for, timezone, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.AccountID,
		p.UserID,
		p.MediaURLs,
		p.Caption,
		p.MediaType,
		p.ThumbnailURL,
		p.ScheduledFor,
		p.Timezone,
		p.Status,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *scheduledPostRepository) List(ctx context.Context, f PostFilter) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1`
	args := []interface{}{f.UserID}

	if f.AccountID != 0 {
		args = append(args, f.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND scheduled_for >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND scheduled_for <= $%d", len(args))
	}

	query += " ORDER BY scheduled_for DESC"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

// ListDue returns the posts a processor run should attempt: pending posts
// whose time has come, plus failed posts still under the retry cap once the
// backoff window has passed. Served by the (status, scheduled_for) index.
func (r *scheduledPostRepository) ListDue(ctx context.Context, now time.Time, retryCap int, retryBackoff time.Duration) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE (status = $1 AND scheduled_for <= $3)
		   OR (status = $2 AND scheduled_for <= $3 AND retry_count < $4 AND last_retry_at <= $5)
		ORDER BY scheduled_for
	`
	rows, err := r.db.QueryContext(ctx, query,
		models.PostStatusPending,
		models.PostStatusFailed,
		now,
		retryCap,
		now.Add(-retryBackoff),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

// Claim atomically moves a pending or failed post to processing. Exactly one
// concurrent claimant observes true; everyone else must skip the post.
func (r *scheduledPostRepository) Claim(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status IN ($3, $4)
	`
	result, err := r.db.ExecContext(ctx, query, id,
		models.PostStatusProcessing, models.PostStatusPending, models.PostStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// CancelIfNotTerminal cancels the post unless it already finished. Cancelling
// a claimed post is allowed; the in-flight attempt's outcome write goes
// through UpdateIfProcessing and loses against the cancelled row.
func (r *scheduledPostRepository) CancelIfNotTerminal(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status NOT IN ($3, $4)
	`
	result, err := r.db.ExecContext(ctx, query, id,
		models.PostStatusCancelled, models.PostStatusPublished, models.PostStatusCancelled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// UpdateIfPending persists an edit to a post that has not started publishing.
// The status check at write time guards against a claim that happened after
// the post was read; a lost write returns false and changes nothing.
func (r *scheduledPostRepository) UpdateIfPending(ctx context.Context, p *models.ScheduledPost) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET media_urls = $2,
			caption = $3,
			media_type = $4,
			thumbnail_url = $5,
			scheduled_for = $6,
			timezone = $7,
			updated_at = $8
		WHERE id = $1 AND status = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.MediaURLs,
		p.Caption,
		p.MediaType,
		p.ThumbnailURL,
		p.ScheduledFor,
		p.Timezone,
		p.UpdatedAt,
		models.PostStatusPending,
	)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// UpdateIfProcessing records the outcome of a publish attempt, but only while
// the row is still claimed. A cancellation that won the race leaves the row
// cancelled; the attempt's outcome write loses and returns false.
func (r *scheduledPostRepository) UpdateIfProcessing(ctx context.Context, p *models.ScheduledPost) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2,
			container_id = $3,
			published_media_id = $4,
			error_message = $5,
			retry_count = $6,
			last_retry_at = $7,
			published_at = $8,
			updated_at = $9
		WHERE id = $1 AND status = $10
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Status,
		p.ContainerID,
		p.PublishedMediaID,
		p.ErrorMessage,
		p.RetryCount,
		p.LastRetryAt,
		p.PublishedAt,
		p.UpdatedAt,
		models.PostStatusProcessing,
	)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *scheduledPostRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := `SELECT 1 FROM scheduled_posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var p models.ScheduledPost
	var lastRetryAt, publishedAt sql.NullTime

	err := row.Scan(&p.ID, &p.AccountID, &p.UserID, pq.Array(&p.MediaURLs), &p.Caption,
		&p.MediaType, &p.ThumbnailURL, &p.ScheduledFor, &p.Timezone, &p.Status,
		&p.ContainerID, &p.PublishedMediaID, &p.ErrorMessage, &p.RetryCount,
		&lastRetryAt, &publishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastRetryAt.Valid {
		p.LastRetryAt = &lastRetryAt.Time
	}
	if publishedAt.Valid {
		p.PublishedAt = &publishedAt.Time
	}
	return &p, nil
}

func collectPosts(rows *sql.Rows) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}
