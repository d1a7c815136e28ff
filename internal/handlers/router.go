package handlers

import (
	"gekoimport/internal/app"
	"gekoimport/internal/handlers/middleware"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) (err error) {
	router.Use(app.Middleware.TraceID())

	WebSocketHandler(router, app.Controllers.Imports, app.Websocket)

	api := router.Group("/api")
	HealthHandler(api, app.Config, &app.Database, app.Services.Scheduler)

	v1 := api.Group("/v1")
	NewUploadHandler(*app, v1).Register()

	return nil
}
