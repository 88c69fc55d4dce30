package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/socialflowhq/socialflow/internal/service"
)

type AccountHandler struct {
	s service.AccountService
}

func NewAccountHandler(s service.AccountService) *AccountHandler {
	return &AccountHandler{s: s}
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.s.List(c.Context(), userID)
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch connected accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *AccountHandler) DisconnectAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	err := h.s.Disconnect(c.Context(), userID, int64(accountID))
	if err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": ErrorMessage(err),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *AccountHandler) RefreshAccountToken(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	err := h.s.RefreshToken(c.Context(), userID, int64(accountID))
	if err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": ErrorMessage(err),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
