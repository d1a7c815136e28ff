package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gekoimport/config"
	"gekoimport/internal/handlers/middleware"
	"gekoimport/internal/models"

	contextutil "gekoimport/internal/context"
	importsController "gekoimport/internal/controllers/imports"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeImports struct {
	jobs         map[uuid.UUID]*models.ImportJob
	submitted    []string
	submitBody   string
	submitErr    error
	cancelled    []uuid.UUID
	historyLimit int
	traceID      string
}

func newFakeImports() *fakeImports {
	return &fakeImports{jobs: make(map[uuid.UUID]*models.ImportJob)}
}

func (f *fakeImports) add(status models.ImportStatus) *models.ImportJob {
	job := &models.ImportJob{FileName: "feed.xml", Status: status}
	job.ID = uuid.New()
	job.CreatedAt = time.Now()
	f.jobs[job.ID] = job
	return job
}

func (f *fakeImports) Submit(ctx context.Context, fileName string, _ int64, file io.Reader) (*models.ImportJob, error) {
	f.traceID, _ = contextutil.GetTraceID(ctx)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	body, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.submitted = append(f.submitted, fileName)
	f.submitBody = string(body)
	return f.add(models.ImportStatusPending), nil
}

func (f *fakeImports) Get(_ context.Context, id uuid.UUID) (*models.ImportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", importsController.ErrJobNotFound, id)
	}
	return job, nil
}

func (f *fakeImports) Cancel(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	job, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f.cancelled = append(f.cancelled, id)
	if !job.Status.IsTerminal() {
		job.Status = models.ImportStatusCancelled
	}
	return job, nil
}

func (f *fakeImports) History(_ context.Context, limit int) ([]*models.ImportJob, error) {
	f.historyLimit = limit
	jobs := make([]*models.ImportJob, 0, len(f.jobs))
	for _, job := range f.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func setupUploadApp(t *testing.T, controller *fakeImports, maxBytes int64) *fiber.App {
	t.Helper()

	app := fiber.New()
	m := middleware.Middleware{}
	app.Use(m.TraceID())
	newUploadHandler(controller, m, app.Group("/api/v1"), maxBytes).Register()
	return app
}

func multipartRequest(t *testing.T, field, fileName, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if field != "" {
		part, err := writer.CreateFormFile(field, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/upload/xml", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload
}

func TestUploadXML_Accepted(t *testing.T) {
	controller := newFakeImports()
	app := setupUploadApp(t, controller, 1024)

	resp, err := app.Test(multipartRequest(t, UPLOAD_FORM_FIELD, "feed.xml", "<geko/>"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	payload := decode(t, resp.Body)
	assert.Equal(t, true, payload["success"])
	job := payload["job"].(map[string]any)
	assert.Equal(t, "pending", job["status"])
	assert.NotEmpty(t, job["id"])

	assert.Equal(t, []string{"feed.xml"}, controller.submitted)
	assert.Equal(t, "<geko/>", controller.submitBody)
}

func TestUploadXML_CarriesTraceIDToSubmit(t *testing.T) {
	controller := newFakeImports()
	app := setupUploadApp(t, controller, 1024)

	req := multipartRequest(t, UPLOAD_FORM_FIELD, "feed.xml", "<offer/>")
	req.Header.Set(middleware.TraceIDHeader, "upload-7")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "upload-7", resp.Header.Get(middleware.TraceIDHeader))
	assert.Equal(t, "upload-7", controller.traceID)
}

func TestUploadXML_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		fileName  string
		content   string
		submitErr error
		status    int
	}{
		{name: "missing file", status: fiber.StatusBadRequest},
		{name: "wrong field", field: "file", fileName: "feed.xml", content: "<geko/>", status: fiber.StatusBadRequest},
		{name: "not xml", field: UPLOAD_FORM_FIELD, fileName: "feed.csv", content: "a,b", status: fiber.StatusBadRequest},
		{name: "too large", field: UPLOAD_FORM_FIELD, fileName: "feed.xml", content: string(bytes.Repeat([]byte("x"), 2048)), status: fiber.StatusRequestEntityTooLarge},
		{
			name:      "controller too large",
			field:     UPLOAD_FORM_FIELD,
			fileName:  "feed.xml",
			content:   "<geko/>",
			submitErr: fmt.Errorf("%w: stream", importsController.ErrUploadTooLarge),
			status:    fiber.StatusRequestEntityTooLarge,
		},
		{
			name:      "controller invalid",
			field:     UPLOAD_FORM_FIELD,
			fileName:  "feed.xml",
			content:   "<geko/>",
			submitErr: fmt.Errorf("%w: bad name", importsController.ErrInvalidUpload),
			status:    fiber.StatusBadRequest,
		},
		{
			name:      "storage failure",
			field:     UPLOAD_FORM_FIELD,
			fileName:  "feed.xml",
			content:   "<geko/>",
			submitErr: errors.New("disk full"),
			status:    fiber.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := newFakeImports()
			controller.submitErr = tt.submitErr
			app := setupUploadApp(t, controller, 1024)

			resp, err := app.Test(multipartRequest(t, tt.field, tt.fileName, tt.content), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			payload := decode(t, resp.Body)
			assert.Equal(t, false, payload["success"])
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestGetJob(t *testing.T) {
	controller := newFakeImports()
	app := setupUploadApp(t, controller, 1024)

	job := controller.add(models.ImportStatusCompleted)
	started := time.Now().Add(-time.Second)
	duration := 0.8
	job.StartedAt = &started
	job.Duration = &duration
	job.Progress = 100
	job.Stats = datatypes.NewJSONType(models.ImportStats{TotalProducts: 3, ImportedProducts: 2, ErrorsCount: 1})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/upload/jobs/"+job.ID.String(), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decode(t, resp.Body)
	assert.Equal(t, true, payload["success"])
	view := payload["job"].(map[string]any)
	assert.Equal(t, "completed", view["status"])
	assert.Equal(t, float64(100), view["progress"])

	result := view["result"].(map[string]any)
	assert.Equal(t, 0.8, result["duration"])
	assert.Equal(t, "1 of 3 products could not be imported", result["warning"])
}

func TestGetJob_PendingHasNoResult(t *testing.T) {
	controller := newFakeImports()
	app := setupUploadApp(t, controller, 1024)

	job := controller.add(models.ImportStatusPending)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/upload/jobs/"+job.ID.String(), nil), -1)
	require.NoError(t, err)

	view := decode(t, resp.Body)["job"].(map[string]any)
	assert.NotContains(t, view, "result")
	assert.NotContains(t, view, "error")
}

func TestGetJob_NotFoundAndInvalid(t *testing.T) {
	app := setupUploadApp(t, newFakeImports(), 1024)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/upload/jobs/"+uuid.NewString(), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/upload/jobs/not-a-uuid", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCancelJob(t *testing.T) {
	controller := newFakeImports()
	app := setupUploadApp(t, controller, 1024)

	job := controller.add(models.ImportStatusPending)
	path := "/api/v1/upload/jobs/" + job.ID.String()

	for range 2 {
		resp, err := app.Test(httptest.NewRequest("DELETE", path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}

	assert.Equal(t, models.ImportStatusCancelled, job.Status)
	assert.Len(t, controller.cancelled, 2)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/upload/jobs/"+uuid.NewString(), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetHistory(t *testing.T) {
	controller := newFakeImports()
	app := setupUploadApp(t, controller, 1024)

	job := controller.add(models.ImportStatusCompleted)
	job.ItemsProcessed = 12

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/upload/history?limit=5", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, controller.historyLimit)

	payload := decode(t, resp.Body)
	assert.Equal(t, true, payload["success"])
	jobs := payload["jobs"].([]any)
	require.Len(t, jobs, 1)
	entry := jobs[0].(map[string]any)
	assert.Equal(t, job.ID.String(), entry["id"])
	assert.Equal(t, "feed.xml", entry["fileName"])
	assert.Equal(t, float64(12), entry["itemsProcessed"])
	assert.Contains(t, entry, "createdAt")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/upload/history", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, controller.historyLimit)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/upload/history?limit=0", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubScheduler struct {
	jobs int
}

func (s stubScheduler) IsRunning() bool  { return true }
func (s stubScheduler) GetJobCount() int { return s.jobs }
func (s stubScheduler) GetNextRunTime() *time.Time {
	next := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	return &next
}

func TestHealthHandler(t *testing.T) {
	app := fiber.New()
	HealthHandler(app.Group("/api"), config.Config{GeneralVersion: "1.2.3"}, stubPinger{}, stubScheduler{jobs: 2})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decode(t, resp.Body)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "1.2.3", payload["version"])
	scheduler, ok := payload["scheduler"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, scheduler["running"])
	assert.Equal(t, float64(2), scheduler["jobs"])
	assert.NotNil(t, scheduler["nextRun"])

	app = fiber.New()
	HealthHandler(app.Group("/api"), config.Config{}, stubPinger{err: errors.New("down")}, nil)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", decode(t, resp.Body)["status"])
}
