package types

import (
	"fmt"
	"gekoimport/internal/models"
	"time"

	"github.com/google/uuid"
)

// ImportJobSummary is the body returned when an upload is accepted.
type ImportJobSummary struct {
	ID     uuid.UUID           `json:"id"`
	Status models.ImportStatus `json:"status"`
}

// ImportJobResult is only present on completed jobs.
type ImportJobResult struct {
	Duration float64            `json:"duration"`
	Stats    models.ImportStats `json:"stats"`
	Warning  string             `json:"warning,omitempty"`
}

type ImportJobView struct {
	ID             uuid.UUID                `json:"id"`
	FileName       string                   `json:"fileName"`
	FileSize       int64                    `json:"fileSize"`
	TraceID        string                   `json:"traceId,omitempty"`
	Status         models.ImportStatus      `json:"status"`
	Progress       int                      `json:"progress"`
	TotalItems     int                      `json:"totalItems"`
	ItemsProcessed int                      `json:"itemsProcessed"`
	Stats          *models.ImportStats      `json:"stats,omitempty"`
	ItemErrors     []models.ImportItemError `json:"itemErrors,omitempty"`
	Error          *string                  `json:"error,omitempty"`
	Result         *ImportJobResult         `json:"result,omitempty"`
	CreatedAt      time.Time                `json:"createdAt"`
	StartedAt      *time.Time               `json:"startedAt,omitempty"`
	CompletedAt    *time.Time               `json:"completedAt,omitempty"`
}

type ImportHistoryEntry struct {
	ID             uuid.UUID           `json:"id"`
	FileName       string              `json:"fileName"`
	CreatedAt      time.Time           `json:"createdAt"`
	Status         models.ImportStatus `json:"status"`
	ItemsProcessed int                 `json:"itemsProcessed"`
}

func NewImportJobSummary(job *models.ImportJob) ImportJobSummary {
	return ImportJobSummary{ID: job.ID, Status: job.Status}
}

// NewImportJobView hides stats until the job has started and the error unless it failed.
func NewImportJobView(job *models.ImportJob) ImportJobView {
	view := ImportJobView{
		ID:             job.ID,
		FileName:       job.FileName,
		FileSize:       job.FileSize,
		TraceID:        job.TraceID,
		Status:         job.Status,
		Progress:       job.Progress,
		TotalItems:     job.TotalItems,
		ItemsProcessed: job.ItemsProcessed,
		ItemErrors:     job.ItemErrors,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}

	if job.StartedAt != nil {
		stats := job.Stats.Data()
		view.Stats = &stats
	}

	if job.Status == models.ImportStatusFailed {
		view.Error = job.Error
	}

	if job.Status == models.ImportStatusCompleted {
		result := ImportJobResult{Stats: job.Stats.Data()}
		if job.Duration != nil {
			result.Duration = *job.Duration
		}
		result.Warning = ImportWarning(result.Stats)
		view.Result = &result
	}

	return view
}

// ImportWarning is empty when every item was imported.
func ImportWarning(stats models.ImportStats) string {
	if stats.ErrorsCount == 0 {
		return ""
	}
	return fmt.Sprintf(
		"%d of %d products could not be imported",
		stats.ErrorsCount,
		stats.TotalProducts,
	)
}

func NewImportHistory(jobs []*models.ImportJob) []ImportHistoryEntry {
	entries := make([]ImportHistoryEntry, 0, len(jobs))
	for _, job := range jobs {
		entries = append(entries, ImportHistoryEntry{
			ID:             job.ID,
			FileName:       job.FileName,
			CreatedAt:      job.CreatedAt,
			Status:         job.Status,
			ItemsProcessed: job.ItemsProcessed,
		})
	}
	return entries
}
