package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/instagram"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/pkg/utils"
)

// PublishService drives one claimed post through the remote publish protocol:
// create a media container, wait for it to finish, publish it.
type PublishService interface {
	Publish(ctx context.Context, post *models.ScheduledPost) error
}

type publishService struct {
	cfg      config.Config
	posts    repository.ScheduledPostRepository
	accounts repository.ConnectedAccountRepository
	ig       instagram.Client
	vault    *utils.TokenVault
}

func NewPublishService(
	cfg config.Config,
	posts repository.ScheduledPostRepository,
	accounts repository.ConnectedAccountRepository,
	ig instagram.Client,
	vault *utils.TokenVault) PublishService {
	return &publishService{
		cfg:      cfg,
		posts:    posts,
		accounts: accounts,
		ig:       ig,
		vault:    vault,
	}
}

func (s *publishService) Publish(ctx context.Context, post *models.ScheduledPost) error {
	account, err := s.accounts.GetByID(ctx, post.AccountID)
	if err != nil {
		return s.fail(ctx, post, "unable to load connected account", err)
	}

	// Unusable credentials fail fast; no remote call is attempted.
	if account == nil {
		return s.fail(ctx, post, "connected account not found", models.ErrAccountNotFound)
	}
	if !account.IsActive {
		return s.fail(ctx, post, "connected account is disconnected", models.ErrAccountInactive)
	}
	if account.IsTokenExpired(time.Now()) {
		return s.fail(ctx, post, "access token has expired, reconnect the account", models.ErrTokenExpired)
	}

	accessToken, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		return s.fail(ctx, post, "stored credential is unreadable", err)
	}

	containerID, err := s.ig.CreateContainer(ctx, accessToken, account.IGUserID, instagram.ContainerParams{
		MediaURLs:    post.MediaURLs,
		Caption:      post.Caption,
		MediaType:    post.MediaType,
		ThumbnailURL: post.ThumbnailURL,
	})
	if err != nil {
		return s.fail(ctx, post, fmt.Sprintf("failed to create media container: %v", err), err)
	}

	if err := post.MarkAsProcessing(containerID); err != nil {
		return err
	}
	kept, err := s.posts.UpdateIfProcessing(ctx, post)
	if err != nil {
		slog.Info(err.Error())
	} else if !kept {
		// Cancelled between the claim and here; nothing was published.
		slog.Info("post no longer claimed, abandoning attempt", "post_id", post.ID)
		return nil
	}

	if err := s.waitForContainer(ctx, accessToken, containerID); err != nil {
		return s.fail(ctx, post, fmt.Sprintf("media container was not ready: %v", err), err)
	}

	mediaID, err := s.ig.PublishContainer(ctx, accessToken, account.IGUserID, containerID)
	if err != nil {
		return s.fail(ctx, post, fmt.Sprintf("failed to publish: %v", err), err)
	}

	if err := post.MarkAsPublished(mediaID); err != nil {
		return err
	}
	kept, err = s.posts.UpdateIfProcessing(ctx, post)
	if err != nil {
		return fmt.Errorf("post published but status write failed: %w", err)
	}
	if !kept {
		slog.Warn("post published remotely after cancellation", "post_id", post.ID, "media_id", mediaID)
		return nil
	}

	slog.Info("post published", "post_id", post.ID, "media_id", mediaID)
	return nil
}

// waitForContainer polls the container until Instagram reports it finished.
// Video containers can take a while to process server-side.
func (s *publishService) waitForContainer(ctx context.Context, accessToken, containerID string) error {
	for attempt := 0; attempt < s.cfg.ContainerPollAttempts; attempt++ {
		status, err := s.ig.GetContainerStatus(ctx, accessToken, containerID)
		if err != nil {
			return err
		}

		switch status {
		case instagram.ContainerStatusFinished:
			return nil
		case instagram.ContainerStatusError:
			return errors.New("container processing failed on the provider side")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ContainerPollInterval):
		}
	}
	return errors.New("container did not finish processing in time")
}

// fail records the failure on the post and propagates the classified cause so
// the caller can decide whether the batch should back off. Only rate-limited
// and transient causes keep their retry budget; everything else is a failure
// another attempt cannot fix, so the post leaves the retry pool.
func (s *publishService) fail(ctx context.Context, post *models.ScheduledPost, message string, cause error) error {
	if err := post.MarkAsFailed(message); err != nil {
		slog.Info(err.Error())
		return cause
	}

	if !errors.Is(cause, models.ErrRateLimited) && !instagram.IsTransient(cause) {
		post.ExhaustRetries(s.cfg.MaxRetryCount)
	}

	kept, err := s.posts.UpdateIfProcessing(ctx, post)
	if err != nil {
		slog.Info(err.Error())
	} else if !kept {
		slog.Info("post no longer claimed, dropping failure record", "post_id", post.ID)
	}

	if errors.Is(cause, models.ErrRateLimited) {
		return fmt.Errorf("%w: post %d", models.ErrRateLimited, post.ID)
	}
	return cause
}
