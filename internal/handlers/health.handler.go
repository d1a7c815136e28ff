package handlers

import (
	"context"
	"gekoimport/config"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether the catalog store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SchedulerStatus interface {
	IsRunning() bool
	GetJobCount() int
	GetNextRunTime() *time.Time
}

func HealthHandler(router fiber.Router, config config.Config, db Pinger, scheduler SchedulerStatus) {
	router.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		code := fiber.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		body := fiber.Map{
			"status":  status,
			"version": config.GeneralVersion,
			"service": "geko_import_api",
		}
		if scheduler != nil {
			body["scheduler"] = fiber.Map{
				"running": scheduler.IsRunning(),
				"jobs":    scheduler.GetJobCount(),
				"nextRun": scheduler.GetNextRunTime(),
			}
		}

		return c.Status(code).JSON(body)
	})
}
