package queue

import (
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/service"
)

type Queue struct {
	posts  repository.ScheduledPostRepository
	engine service.PublishService
}

func NewQueue(posts repository.ScheduledPostRepository, engine service.PublishService) *Queue {
	return &Queue{
		posts:  posts,
		engine: engine,
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
