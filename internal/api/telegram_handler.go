package api

import (
	"github.com/gofiber/fiber/v2"

	"taskflow/internal/service"
)

type TelegramHandler struct {
	links *service.LinkService
}

func NewTelegramHandler(links *service.LinkService) *TelegramHandler {
	return &TelegramHandler{links: links}
}

// LinkCode issues a one-time code the user sends to the bot with /link.
func (h *TelegramHandler) LinkCode(c *fiber.Ctx) error {
	code, err := h.links.Issue(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return createdResponse(c, "Send the command to the bot to link your chat.", fiber.Map{
		"code":       code.Code,
		"command":    "/link " + code.Code,
		"expires_at": code.ExpiresAt,
	})
}
