package handlers

import (
	"context"
	"errors"
	"gekoimport/internal/events"
	"gekoimport/internal/types"
	"gekoimport/internal/websockets"
	"time"

	importsController "gekoimport/internal/controllers/imports"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebSocketHandler serves /ws/upload/jobs/:id. The first frame is a snapshot of the job,
// then every progress event for it, and the connection closes after the final one.
func WebSocketHandler(
	router fiber.Router,
	controller importsController.ImportsControllerInterface,
	wsManager *websockets.Manager,
) {
	log := logger.New("handlers").File("websocket_handler")

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws/upload/jobs/:id", websocket.New(func(c *websocket.Conn) {
		log := log.Function("watchJob")

		jobID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			closeWithError(c, "Invalid job ID")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		job, err := controller.Get(ctx, jobID)
		cancel()
		if err != nil {
			if errors.Is(err, importsController.ErrJobNotFound) {
				closeWithError(c, "Import job not found")
				return
			}
			log.Er("failed to load import job", err, "jobID", jobID)
			closeWithError(c, "Failed to get import job")
			return
		}

		messageType := websockets.MESSAGE_TYPE_SNAPSHOT
		if job.Status.IsTerminal() {
			messageType = string(events.IMPORT_FINISHED)
		}

		snapshot := &websockets.Message{
			ID:        uuid.New().String(),
			Type:      messageType,
			Channel:   events.IMPORT_CHANNEL.String(),
			JobID:     jobID.String(),
			Data:      map[string]any{"job": types.NewImportJobView(job)},
			Timestamp: time.Now(),
		}

		wsManager.HandleJobWatcher(c, jobID, snapshot)
	}))
}

func closeWithError(c *websocket.Conn, reason string) {
	_ = c.WriteJSON(websockets.Message{
		ID:        uuid.New().String(),
		Type:      websockets.MESSAGE_TYPE_ERROR,
		Data:      map[string]any{"error": reason},
		Timestamp: time.Now(),
	})
	_ = c.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
	)
	_ = c.Close()
}
