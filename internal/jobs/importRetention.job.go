package jobs

import (
	"context"
	"gekoimport/internal/services"
	"time"

	logger "github.com/Bparsons0904/goLogger"
)

type HistoryPruner interface {
	PruneHistory(ctx context.Context, retention time.Duration) (int, error)
}

// ImportRetentionJob removes finished import jobs and their uploaded feeds once they are
// older than the retention window.
type ImportRetentionJob struct {
	pruner    HistoryPruner
	retention time.Duration
	log       logger.Logger
	schedule  services.Schedule
}

func NewImportRetentionJob(
	pruner HistoryPruner,
	retentionDays int,
	schedule services.Schedule,
) *ImportRetentionJob {
	log := logger.New("importRetentionJob")
	log.Info("Creating new import retention job", "schedule", schedule, "retentionDays", retentionDays)

	return &ImportRetentionJob{
		pruner:    pruner,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log,
		schedule:  schedule,
	}
}

func (j *ImportRetentionJob) Name() string {
	return "DailyImportRetention"
}

func (j *ImportRetentionJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	if j.retention <= 0 {
		log.Debug("Import retention disabled")
		return nil
	}

	deleted, err := j.pruner.PruneHistory(ctx, j.retention)
	if err != nil {
		return log.Err("import retention failed", err)
	}

	log.Info("Import retention completed", "deletedJobs", deleted)
	return nil
}

func (j *ImportRetentionJob) Schedule() services.Schedule {
	return j.schedule
}
