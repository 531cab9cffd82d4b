package handlers

import (
	"strconv"

	"wallet-quest-ledger/middleware"
	"wallet-quest-ledger/services"

	"github.com/gofiber/fiber/v2"
)

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

type completeQuestRequest struct {
	Answer string `json:"answer"`
}

type adjustXPRequest struct {
	WalletAddress string `json:"wallet_address"`
	Delta         int64  `json:"delta"`
	Reason        string `json:"reason"`
}

// SetupProgressionRoutes mounts the ledger routes. requireSession guards the
// /user and quest submission routes, requireAdmin the /admin routes.
func SetupProgressionRoutes(app fiber.Router, ledger *services.ProgressionService, requireSession, requireAdmin fiber.Handler) {
	app.Get("/quests", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"quests": ledger.Quests()})
	})

	app.Post("/quests/:id/complete", requireSession, func(c *fiber.Ctx) error {
		var req completeQuestRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid request body",
					"cause": err.Error(),
				})
			}
		}

		result, err := ledger.CompleteQuest(c.UserContext(), middleware.WalletAddress(c), c.Params("id"), req.Answer)
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	// 🔐 Session routes
	user := app.Group("/user", requireSession)

	user.Get("/profile", func(c *fiber.Ctx) error {
		profile, err := ledger.GetProfile(c.UserContext(), middleware.WalletAddress(c))
		if err != nil {
			return err
		}
		return c.JSON(profile)
	})

	user.Put("/display-name", func(c *fiber.Ctx) error {
		var req displayNameRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
				"cause": err.Error(),
			})
		}
		profile, err := ledger.SetDisplayName(c.UserContext(), middleware.WalletAddress(c), req.DisplayName)
		if err != nil {
			return err
		}
		return c.JSON(profile)
	})

	user.Post("/check-in", func(c *fiber.Ctx) error {
		result, err := ledger.CheckIn(c.UserContext(), middleware.WalletAddress(c))
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	user.Get("/xp-history", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		history, err := ledger.GetXPHistory(c.UserContext(), middleware.WalletAddress(c), page, size)
		if err != nil {
			return err
		}
		return c.JSON(history)
	})

	// 🛠️ Operator routes
	admin := app.Group("/admin", requireAdmin)

	admin.Post("/xp/adjust", func(c *fiber.Ctx) error {
		var req adjustXPRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
				"cause": err.Error(),
			})
		}
		if _, err := services.ParseWalletAddress(req.WalletAddress); err != nil {
			return err
		}

		profile, err := ledger.AdjustXP(c.UserContext(), req.WalletAddress, req.Delta, req.Reason)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"profile": profile,
		})
	})
}
