package handlers

import (
	"errors"
	"gekoimport/internal/app"
	"gekoimport/internal/handlers/middleware"
	"gekoimport/internal/repositories"
	"gekoimport/internal/types"
	"path/filepath"
	"strings"

	importsController "gekoimport/internal/controllers/imports"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const UPLOAD_FORM_FIELD = "xmlFile"

type UploadHandler struct {
	Handler
	importsController importsController.ImportsControllerInterface
	maxUploadBytes    int64
}

func NewUploadHandler(app app.App, router fiber.Router) *UploadHandler {
	return newUploadHandler(
		app.Controllers.Imports,
		app.Middleware,
		router,
		app.Config.MaxUploadBytes(),
	)
}

func newUploadHandler(
	controller importsController.ImportsControllerInterface,
	middleware middleware.Middleware,
	router fiber.Router,
	maxUploadBytes int64,
) *UploadHandler {
	log := logger.New("handlers").File("upload_handler")
	return &UploadHandler{
		importsController: controller,
		maxUploadBytes:    maxUploadBytes,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: middleware,
		},
	}
}

func (h *UploadHandler) Register() {
	upload := h.router.Group("/upload")
	upload.Post("/xml", h.uploadXML)
	upload.Get("/history", h.getHistory)

	jobs := upload.Group("/jobs")
	jobs.Get("/:id", h.getJob)
	jobs.Delete("/:id", h.cancelJob)
}

func (h *UploadHandler) uploadXML(c *fiber.Ctx) error {
	log := h.log.Function("uploadXML")

	fileHeader, err := c.FormFile(UPLOAD_FORM_FIELD)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "An XML file is required in the xmlFile field",
		})
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xml") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Only .xml files are accepted",
		})
	}

	if fileHeader.Size > h.maxUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"success": false,
			"error":   "File exceeds the maximum upload size",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Er("failed to open uploaded file", err, "fileName", fileHeader.Filename)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to read uploaded file",
		})
	}
	defer func() {
		_ = file.Close()
	}()

	job, err := h.importsController.Submit(c.UserContext(), fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, importsController.ErrInvalidUpload):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		case errors.Is(err, importsController.ErrUploadTooLarge):
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"success": false,
				"error":   "File exceeds the maximum upload size",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to start import",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"job":     types.NewImportJobSummary(job),
	})
}

func (h *UploadHandler) getJob(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid job ID",
		})
	}

	job, err := h.importsController.Get(c.UserContext(), jobID)
	if err != nil {
		return h.jobError(c, err, "Failed to get import job")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"job":     types.NewImportJobView(job),
	})
}

func (h *UploadHandler) cancelJob(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid job ID",
		})
	}

	if _, err := h.importsController.Cancel(c.UserContext(), jobID); err != nil {
		return h.jobError(c, err, "Failed to cancel import job")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UploadHandler) getHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", repositories.DEFAULT_HISTORY_LIMIT)
	if limit <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "limit must be a positive number",
		})
	}

	jobs, err := h.importsController.History(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to get import history",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"jobs":    types.NewImportHistory(jobs),
	})
}

func (h *UploadHandler) jobError(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, importsController.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Import job not found",
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
