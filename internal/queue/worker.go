package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	post, err := q.posts.GetByID(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		// Deleted since scheduling; nothing to do.
		return nil
	}

	if !post.IsReadyToPublish(time.Now()) {
		slog.Info("skipping post not ready to publish", "post_id", post.ID, "status", string(post.Status))
		return nil
	}

	// Same claim as the cron sweep; losing means someone else owns it.
	claimed, err := q.posts.Claim(ctx, post.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := q.engine.Publish(ctx, post); err != nil {
		// Outcome already recorded on the post; retries belong to the sweep.
		slog.Info("publish attempt failed", "post_id", post.ID, "error", err.Error())
	}
	return nil
}
