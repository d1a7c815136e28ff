package jobs

import (
	"context"
	"gekoimport/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type PendingDispatcher interface {
	FailStale(ctx context.Context) (int64, error)
	DispatchPending(ctx context.Context) (int, error)
}

// ImportDispatchJob fails processing jobs whose worker died and re-queues pending jobs the
// in-memory queue dropped while it was full.
type ImportDispatchJob struct {
	dispatcher PendingDispatcher
	log        logger.Logger
	schedule   services.Schedule
}

func NewImportDispatchJob(dispatcher PendingDispatcher, schedule services.Schedule) *ImportDispatchJob {
	return &ImportDispatchJob{
		dispatcher: dispatcher,
		log:        logger.New("importDispatchJob"),
		schedule:   schedule,
	}
}

func (j *ImportDispatchJob) Name() string {
	return "ImportPendingDispatch"
}

func (j *ImportDispatchJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	if _, err := j.dispatcher.FailStale(ctx); err != nil {
		return log.Err("failed to fail stale imports", err)
	}
	if _, err := j.dispatcher.DispatchPending(ctx); err != nil {
		return log.Err("failed to dispatch pending imports", err)
	}
	return nil
}

func (j *ImportDispatchJob) Schedule() services.Schedule {
	return j.schedule
}
