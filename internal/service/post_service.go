package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, time.Duration, error)
	List(ctx context.Context, userID int64, filter *transfer.PostFilter) ([]*models.ScheduledPost, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error)
	Cancel(ctx context.Context, userID, postID int64) error
	UpdateContent(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) error
	Reschedule(ctx context.Context, userID, postID int64, pr *transfer.PostReschedule) error
}

type postService struct {
	posts    repository.ScheduledPostRepository
	accounts repository.ConnectedAccountRepository
}

func NewPostService(
	posts repository.ScheduledPostRepository,
	accounts repository.ConnectedAccountRepository) PostService {
	return &postService{
		posts:    posts,
		accounts: accounts,
	}
}

// CreatePost validates and stores a new pending post. The returned delay is
// how long until the post is due, for queue scheduling.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, 0, err
	}

	scheduledFor, err := time.Parse(time.RFC3339, pc.ScheduledFor)
	if err != nil {
		return 0, 0, &models.ValidationError{Field: "scheduled_for", Reason: "expected RFC 3339 timestamp"}
	}

	isOwner, err := s.accounts.CheckByUserID(ctx, pc.AccountID, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("error checking connected account %d: %w", pc.AccountID, err)
	}
	if !isOwner {
		return 0, 0, models.ErrAccountNotFound
	}

	post, err := models.NewScheduledPost(
		pc.AccountID,
		userID,
		pc.MediaURLs,
		pc.Caption,
		models.MediaType(pc.MediaType),
		pc.ThumbnailURL,
		scheduledFor,
		pc.Timezone,
	)
	if err != nil {
		return 0, 0, err
	}

	postID, err := s.posts.Create(ctx, post)
	if err != nil {
		return 0, 0, fmt.Errorf("error creating post: %w", err)
	}

	delay := time.Until(scheduledFor)
	if delay < 0 {
		delay = 0
	}

	return postID, delay, nil
}

func (s *postService) List(ctx context.Context, userID int64, filter *transfer.PostFilter) ([]*models.ScheduledPost, error) {
	f := repository.PostFilter{UserID: userID}

	if filter != nil {
		f.AccountID = filter.AccountID
		f.Status = models.PostStatus(filter.Status)
		f.Limit = filter.Limit
		f.Offset = filter.Offset

		if filter.From != "" {
			from, err := time.Parse(time.RFC3339, filter.From)
			if err != nil {
				return nil, &models.ValidationError{Field: "from", Reason: "expected RFC 3339 timestamp"}
			}
			f.From = &from
		}
		if filter.To != "" {
			to, err := time.Parse(time.RFC3339, filter.To)
			if err != nil {
				return nil, &models.ValidationError{Field: "to", Reason: "expected RFC 3339 timestamp"}
			}
			f.To = &to
		}
	}

	posts, err := s.posts.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Cancel is cooperative: if a processor already claimed the post, the
// conditional write loses and the in-flight attempt resolves first.
func (s *postService) Cancel(ctx context.Context, userID, postID int64) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	if err := post.MarkAsCancelled(); err != nil {
		return err
	}

	cancelled, err := s.posts.CancelIfNotTerminal(ctx, postID)
	if err != nil {
		return fmt.Errorf("error cancelling post: %w", err)
	}
	if !cancelled {
		return &models.TransitionError{From: post.Status, To: models.PostStatusCancelled}
	}
	return nil
}

func (s *postService) UpdateContent(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	if err := post.UpdateContent(pu.MediaURLs, pu.Caption, models.MediaType(pu.MediaType), pu.ThumbnailURL); err != nil {
		return err
	}
	return s.persistPendingEdit(ctx, post)
}

func (s *postService) Reschedule(ctx context.Context, userID, postID int64, pr *transfer.PostReschedule) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	scheduledFor, err := time.Parse(time.RFC3339, pr.ScheduledFor)
	if err != nil {
		return &models.ValidationError{Field: "scheduled_for", Reason: "expected RFC 3339 timestamp"}
	}

	if err := post.Reschedule(scheduledFor, pr.Timezone); err != nil {
		return err
	}
	return s.persistPendingEdit(ctx, post)
}

// persistPendingEdit writes an edit conditionally on the row still being
// pending. The entity guard alone is not enough: a processor can claim the
// post between the read and the write, and an unconditional write would flip
// the claimed row back to pending.
func (s *postService) persistPendingEdit(ctx context.Context, post *models.ScheduledPost) error {
	updated, err := s.posts.UpdateIfPending(ctx, post)
	if err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}
	if !updated {
		return &models.TransitionError{From: models.PostStatusProcessing, To: models.PostStatusPending}
	}
	return nil
}

func (s *postService) ownedPost(ctx context.Context, userID, postID int64) (*models.ScheduledPost, error) {
	if userID == 0 || postID == 0 {
		err := errors.New("user or post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isOwner, err := s.posts.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return nil, models.ErrPostNotFound
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil {
		return nil, models.ErrPostNotFound
	}
	return post, nil
}
