// handlers/stats_routes.go
package handlers

import (
	"human-or-ai-backend/middleware"
	"human-or-ai-backend/services"

	"github.com/gofiber/fiber/v2"
)

const (
	leaderboardMinQuestions = 30
	leaderboardLimit        = 50
)

func SetupStatsRoutes(app *fiber.App, statsService *services.StatsService) {
	group := app.Group("/", middleware.UserContextMiddleware())

	// Lifetime stats for the caller. Identity required here, there is
	// nothing to report for an anonymous visitor.
	group.Get("/me-stats", func(c *fiber.Ctx) error {
		userID := middleware.CurrentUserID(c)
		if userID == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "stats require an identity",
			})
		}
		stats, err := statsService.MeStats(*userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	})

	group.Get("/leaderboard", func(c *fiber.Ctx) error {
		entries, err := statsService.Leaderboard(leaderboardMinQuestions, leaderboardLimit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})
}
