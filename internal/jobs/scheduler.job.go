package jobs

import (
	"gekoimport/config"
	"gekoimport/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

const (
	EveryMinute = services.EveryMinute
	Hourly      = services.Hourly
	Daily       = services.Daily
)

// ImportMaintenance is what the scheduled jobs need from the imports controller.
type ImportMaintenance interface {
	PendingDispatcher
	HistoryPruner
}

func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	imports ImportMaintenance,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	if !config.SchedulerEnabled {
		log.Info("Scheduler disabled, skipping job registration")
		return nil
	}

	log.Info("Registering jobs")

	dispatchJob := NewImportDispatchJob(imports, EveryMinute)
	if err := schedulerService.AddJob(dispatchJob); err != nil {
		return log.Err("failed to register import dispatch job", err)
	}
	log.Info("Registered import dispatch job", "schedule", dispatchJob.Schedule())

	retentionJob := NewImportRetentionJob(imports, config.ImportRetentionDays, Daily)
	if err := schedulerService.AddJob(retentionJob); err != nil {
		return log.Err("failed to register import retention job", err)
	}
	log.Info("Registered import retention job", "schedule", retentionJob.Schedule())

	return nil
}
