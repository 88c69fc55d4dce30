package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/service"
)

type OAuthHandler struct {
	s   service.OAuthService
	cfg config.Config
}

func NewOAuthHandler(s service.OAuthService, cfg config.Config) *OAuthHandler {
	return &OAuthHandler{s: s, cfg: cfg}
}

func (h *OAuthHandler) ConnectInstagram(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var organizationID *int64
	if orgParam := c.QueryInt("organization_id", 0); orgParam != 0 {
		orgID := int64(orgParam)
		organizationID = &orgID
	}

	authURL, err := h.s.Initiate(c.Context(), userID, organizationID, c.Query("redirect_url"))
	if err != nil {
		return c.Status(ErrorStatus(err)).JSON(fiber.Map{
			"error": "Unable to start account connection",
		})
	}

	return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
}

func (h *OAuthHandler) CallbackHandler(c *fiber.Ctx) error {
	// The provider reports user cancellation through error params.
	if providerErr := c.Query("error"); providerErr != "" {
		slog.Info("provider denied authorization", "error", providerErr, "description", c.Query("error_description"))
		return h.redirectWithError(c, h.cfg.FrontendURL+"/dashboard/accounts", "provider_denied")
	}

	result, err := h.s.HandleCallback(c.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		slog.Info(err.Error())
		return h.redirectWithError(c, h.cfg.FrontendURL+"/dashboard/accounts", callbackErrorCode(err))
	}

	redirectURL := fmt.Sprintf("%s?success=true&connected=%s",
		result.RedirectURL, strconv.Itoa(result.ConnectedCount))
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *OAuthHandler) redirectWithError(c *fiber.Ctx, target, code string) error {
	return c.Redirect(fmt.Sprintf("%s?error=%s", target, code), fiber.StatusTemporaryRedirect)
}

func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrOAuthState):
		return "invalid_state"
	case errors.Is(err, models.ErrNoInstagramAccount):
		return "no_instagram_account"
	default:
		return "connection_failed"
	}
}
