// handlers/health_routes.go
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var startedAt = time.Now()

func SetupHealthRoutes(app *fiber.App, db *gorm.DB) {
	app.Get("/health-check", func(c *fiber.Ctx) error {
		dbStatus := "up"
		status := "healthy"
		code := fiber.StatusOK

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Context())
		}
		if err != nil {
			dbStatus = "down"
			status = "unhealthy"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services":  fiber.Map{"database": dbStatus},
			"uptime":    int(time.Since(startedAt).Seconds()),
		})
	})
}
