package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/socialflowhq/socialflow/internal/queue"
	"github.com/socialflowhq/socialflow/internal/service"
	"github.com/socialflowhq/socialflow/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	AsynqClient *asynq.Client
}

func NewPostHandler(service service.PostService, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: service, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	postID, delay, err := h.s.CreatePost(c.Context(), userID, &pc)
	if err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": ErrorMessage(err),
		})
	}

	err = queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: postID}, delay)
	if err != nil {
		// The cron sweep still picks the post up when it falls due.
		slog.Info("unable to enqueue publish task", "post_id", postID, "error", err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post scheduled successfully",
		"post_id": postID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postID), userID)
		if err != nil {
			return c.Status(ErrorStatus(err)).JSON(fiber.Map{
				"error": ErrorMessage(err),
			})
		}

		return c.Status(fiber.StatusOK).JSON(post)
	}

	filter := &transfer.PostFilter{
		AccountID: int64(c.QueryInt("account_id", 0)),
		Status:    c.Query("status"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}

	posts, err := h.s.List(c.Context(), userID, filter)
	if err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": ErrorMessage(err),
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	err := h.s.Cancel(c.Context(), userID, int64(postID))
	if err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": ErrorMessage(err),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.UpdateContent(c.Context(), userID, int64(postID), &pu); err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": ErrorMessage(err),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) ReschedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	var pr transfer.PostReschedule
	if err := c.BodyParser(&pr); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.Reschedule(c.Context(), userID, int64(postID), &pr); err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": ErrorMessage(err),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
