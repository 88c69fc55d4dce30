package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/socialflowhq/socialflow/internal/models"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

// ErrorStatus maps domain errors to stable HTTP statuses. Provider error
// bodies never reach the response.
func ErrorStatus(err error) int {
	var validationErr *models.ValidationError
	var transitionErr *models.TransitionError

	switch {
	case errors.As(err, &validationErr), errors.Is(err, models.ErrOAuthState):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNoInstagramAccount):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAccountNotFound), errors.Is(err, models.ErrPostNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrTokenExpired), errors.Is(err, models.ErrAccountInactive), errors.As(err, &transitionErr):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrRateLimited):
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorMessage returns what the API may reveal about the failure.
func ErrorMessage(err error) string {
	if ErrorStatus(err) == fiber.StatusInternalServerError {
		return "something went wrong"
	}
	return err.Error()
}
