// handlers/session_routes.go
package handlers

import (
	"errors"

	"human-or-ai-backend/middleware"
	"human-or-ai-backend/services"

	"github.com/gofiber/fiber/v2"
)

// SetupSessionRoutes wires the lifecycle endpoints. Route names follow
// the frontend's API contract (start-session, next-question,
// submit-guess) rather than REST nesting.
func SetupSessionRoutes(app *fiber.App, sessionService *services.SessionService, statsService *services.StatsService) {
	group := app.Group("/", middleware.UserContextMiddleware())

	group.Post("/start-session", func(c *fiber.Ctx) error {
		type Req struct {
			CategoryFilter []int `json:"category_filter"`
		}
		var req Req
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid JSON",
					"cause": err.Error(),
				})
			}
		}

		sess, err := sessionService.StartSession(middleware.CurrentUserID(c), req.CategoryFilter)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"session_id": sess.ID})
	})

	group.Get("/next-question", func(c *fiber.Ctx) error {
		q, err := sessionService.NextQuestion(c.Query("session_id"), middleware.CurrentUserID(c))
		if err != nil {
			return respondError(c, err)
		}
		if q == nil {
			// Candidate set exhausted: a valid empty result, the
			// frontend shows "you've seen everything".
			return c.JSON(nil)
		}
		return c.JSON(q)
	})

	group.Post("/submit-guess", func(c *fiber.Ctx) error {
		type Req struct {
			SessionID   string `json:"session_id"`
			PassageID   int64  `json:"passage_id"`
			GuessSource string `json:"guess_source"`
			TimeMS      int    `json:"time_ms"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := sessionService.SubmitGuess(
			req.SessionID, middleware.CurrentUserID(c),
			req.PassageID, req.GuessSource, req.TimeMS,
		)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	group.Post("/end-session", func(c *fiber.Ctx) error {
		type Req struct {
			SessionID string `json:"session_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		sess, err := sessionService.EndSession(req.SessionID, middleware.CurrentUserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"session_id":         sess.ID,
			"status":             sess.Status,
			"score":              sess.Score,
			"questions_answered": sess.QuestionsAnswered,
			"ended_at":           sess.EndedAt,
		})
	})

	group.Get("/session-stats", func(c *fiber.Ctx) error {
		totals, err := statsService.SessionStats(c.Query("session_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(totals)
	})

	group.Get("/session-history", func(c *fiber.Ctx) error {
		userID := middleware.CurrentUserID(c)
		if userID == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "session history requires an identity",
			})
		}
		page := c.QueryInt("page", 1)
		size := c.QueryInt("limit", 20)
		history, err := statsService.SessionHistory(*userID, page, size)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(history)
	})
}

// respondError maps a service error to the HTTP contract. Store
// failures carry their cause for the ops log trail; caller mistakes
// carry only the message.
func respondError(c *fiber.Ctx, err error) error {
	status := services.HTTPStatus(err)
	var ge *services.GameError
	if errors.As(err, &ge) {
		body := fiber.Map{"error": ge.Message}
		if ge.Cause != nil {
			body["cause"] = ge.Cause.Error()
		}
		return c.Status(status).JSON(body)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
