package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/service"
)

// DuePostJob is the periodic sweep behind the publishing pipeline. It picks
// up due posts the queue missed and failed posts that earned another attempt,
// claims each one, and hands it to the publishing engine.
type DuePostJob struct {
	cfg    config.Config
	posts  repository.ScheduledPostRepository
	engine service.PublishService
}

func NewDuePostJob(
	cfg config.Config,
	posts repository.ScheduledPostRepository,
	engine service.PublishService) *DuePostJob {
	return &DuePostJob{
		cfg:    cfg,
		posts:  posts,
		engine: engine,
	}
}

func (j *DuePostJob) ProcessDuePosts() {
	ctx := context.Background()
	now := time.Now()

	duePosts, err := j.posts.ListDue(ctx, now, j.cfg.MaxRetryCount, j.cfg.RetryBackoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(duePosts) == 0 {
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	// Once one post hits the provider rate limit the rest of the batch is
	// left for the next run instead of burning more quota.
	var rateLimited atomic.Bool

	for _, post := range duePosts {
		if rateLimited.Load() {
			break
		}

		if post.Status == models.PostStatusFailed {
			if err := post.ResetForRetry(j.cfg.MaxRetryCount); err != nil {
				slog.Info(err.Error())
				continue
			}
		}

		// The conditional write is the claim: a concurrent processor or the
		// queue worker may already own this post.
		claimed, err := j.posts.Claim(ctx, post.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if !claimed {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.ScheduledPost) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.engine.Publish(ctx, post); err != nil {
				if errors.Is(err, models.ErrRateLimited) {
					rateLimited.Store(true)
				}
				slog.Info("publish attempt failed", "post_id", post.ID, "error", err.Error())
			}
		}(post)
	}

	wg.Wait()
}
