package handlers

import (
	"strconv"

	"wallet-quest-ledger/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app fiber.Router, leaderboard *services.LeaderboardService) {
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultLeaderboardLimit)))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a number",
			})
		}

		entries, err := leaderboard.GetLeaderboard(c.UserContext(), limit)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"leaderboard": entries})
	})
}
