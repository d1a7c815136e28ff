package importsController

import (
	"gekoimport/internal/events"
	. "gekoimport/internal/models"
)

func (c *ImportsController) publish(messageType events.MessageType, job *ImportJob) {
	data := map[string]any{
		"jobId":          job.ID,
		"status":         job.Status,
		"fileName":       job.FileName,
		"progress":       job.Progress,
		"itemsProcessed": job.ItemsProcessed,
		"totalItems":     job.TotalItems,
		"stats":          job.Stats.Data(),
	}
	if job.Error != nil {
		data["error"] = *job.Error
	}
	if job.Duration != nil {
		data["duration"] = *job.Duration
	}

	c.send(messageType, job, data)
}

func (c *ImportsController) publishRun(messageType events.MessageType, run *importRun, status ImportStatus) {
	data := map[string]any{
		"jobId":          run.job.ID,
		"status":         status,
		"fileName":       run.job.FileName,
		"progress":       run.progress,
		"itemsProcessed": run.processed,
		"totalItems":     run.total,
		"stats":          run.stats,
	}
	if run.job.Error != nil {
		data["error"] = *run.job.Error
	}
	if run.job.Duration != nil {
		data["duration"] = *run.job.Duration
	}

	c.send(messageType, run.job, data)
}

func (c *ImportsController) send(messageType events.MessageType, job *ImportJob, data map[string]any) {
	if c.publisher == nil {
		return
	}

	jobID := job.ID
	err := c.publisher.Publish(events.IMPORT_CHANNEL, events.Event{
		Type:  messageType,
		JobID: &jobID,
		Data:  data,
	})
	if err != nil {
		c.log.Function("send").Er("failed to publish import event", err, "jobID", job.ID, "type", messageType)
	}
}
