package importsController

import (
	"context"
	"errors"
	"fmt"
	"gekoimport/internal/events"
	. "gekoimport/internal/models"
	"gekoimport/internal/repositories"
	"gekoimport/internal/services"
	"time"
)

// importRun is the mutable state of one job while a worker streams its feed.
type importRun struct {
	job          *ImportJob
	handle       *activeImport
	startedAt    time.Time
	total        int
	processed    int
	progress     int
	stats        ImportStats
	itemErrors   []ImportItemError
	lastRemote   time.Time
	lastProgress int
}

// computeProgress maps processed items to a percentage that stops at 99 until the job
// completes, so 100 always means done.
func computeProgress(processed, total int) int {
	if total <= 0 || processed <= 0 {
		return 0
	}

	progress := processed * 100 / total
	if progress > 99 {
		progress = 99
	}
	return progress
}

func (c *ImportsController) process(
	ctx context.Context,
	job *ImportJob,
	handle *activeImport,
	startedAt time.Time,
) {
	log := c.log.Function("process")

	run := &importRun{
		job:          job,
		handle:       handle,
		startedAt:    startedAt,
		lastRemote:   startedAt,
		lastProgress: -1,
	}

	log.Info("Import started", "jobID", job.ID, "traceID", job.TraceID, "fileName", job.FileName)

	total, err := c.countItems(job)
	if err != nil {
		if !errors.Is(err, services.ErrFatalParse) {
			c.fail(ctx, run, err)
			return
		}
		// The stream stops at the same point; items before it are still imported.
		log.Warn("Feed breaks during pre-scan", "jobID", job.ID, "itemsBeforeBreak", total, "error", err)
	}
	run.total = total
	run.stats.TotalProducts = total

	if err := c.jobRepo.SetTotalItems(ctx, job.ID, total); err != nil {
		log.Er("failed to store item total", err, "jobID", job.ID)
	}

	file, err := c.storage.Open(job.FilePath)
	if err != nil {
		c.fail(ctx, run, err)
		return
	}
	defer file.Close()

	reader := services.NewFeedReader(file)
	resolver := services.NewEntityResolver()

	for {
		if stop := c.checkStop(ctx, run); stop != "" {
			if stop == ImportStatusCancelled {
				c.finish(ctx, run, ImportStatusCancelled, nil)
			} else {
				c.fail(ctx, run, errors.New(InterruptedMessage))
			}
			return
		}

		if !reader.Next() {
			break
		}

		item := reader.Item()
		run.processed++

		if err := c.processItem(ctx, resolver, item, run); err != nil {
			if errors.Is(err, errStoreUnavailable) {
				c.fail(ctx, run, err)
				return
			}
			c.recordItemError(run, item, err)
		}

		if !c.reportProgress(ctx, run) {
			c.abandon(ctx, run)
			return
		}
	}

	if err := reader.Err(); err != nil {
		c.fail(ctx, run, err)
		return
	}

	run.progress = 100
	c.finish(ctx, run, ImportStatusCompleted, nil)
}

func (c *ImportsController) countItems(job *ImportJob) (int, error) {
	file, err := c.storage.Open(job.FilePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return services.CountItems(file)
}

func (c *ImportsController) processItem(
	ctx context.Context,
	resolver *services.EntityResolver,
	item services.RawItem,
	run *importRun,
) error {
	set, err := resolver.Resolve(item)
	if err != nil {
		return err
	}

	outcome, err := c.persister.Persist(ctx, set)
	if err != nil {
		if pingErr := c.jobRepo.Ping(ctx); pingErr != nil {
			return fmt.Errorf("%w: %w", errStoreUnavailable, err)
		}
		return &services.ItemError{
			Position: item.Position,
			Line:     item.Line,
			Key:      set.Product.Code,
			Reason:   err.Error(),
		}
	}

	firstSeen := resolver.Remember(set, outcome)
	applyOutcome(&run.stats, outcome, firstSeen)

	return nil
}

func applyOutcome(stats *ImportStats, outcome *services.ItemOutcome, firstSeen []services.ReferenceKind) {
	stats.ImportedProducts++
	if outcome.ProductCreated {
		stats.CreatedProducts++
	} else {
		stats.UpdatedProducts++
	}

	stats.VariantsCount += outcome.Variants
	stats.PricesCount += outcome.Prices
	stats.ImagesCount += outcome.Images
	stats.DocumentsCount += outcome.Documents
	stats.PropertiesCount += outcome.Properties

	for _, kind := range firstSeen {
		created := outcome.References[kind].Created
		switch kind {
		case services.ReferenceCategory:
			stats.CategoriesCount++
			if created {
				stats.CategoriesCreated++
			}
		case services.ReferenceProducer:
			stats.ProducersCount++
			if created {
				stats.ProducersCreated++
			}
		case services.ReferenceUnit:
			stats.UnitsCount++
			if created {
				stats.UnitsCreated++
			}
		}
	}
}

func (c *ImportsController) recordItemError(run *importRun, item services.RawItem, err error) {
	run.stats.ErrorsCount++

	entry := ImportItemError{Position: item.Position, Line: item.Line, Reason: err.Error()}
	var itemErr *services.ItemError
	if errors.As(err, &itemErr) {
		entry.Key = itemErr.Key
		entry.Reason = itemErr.Reason
	}

	c.log.Function("recordItemError").
		Warn("Feed item skipped", "jobID", run.job.ID, "position", entry.Position, "key", entry.Key, "reason", entry.Reason)

	if len(run.itemErrors) < MaxStoredItemErrors {
		run.itemErrors = append(run.itemErrors, entry)
	}
}

// checkStop reports whether the job must stop before its next item: cancelled when a
// cancel request was seen, failed when the process is shutting down.
func (c *ImportsController) checkStop(ctx context.Context, run *importRun) ImportStatus {
	if run.handle.cancelled.Load() {
		return ImportStatusCancelled
	}
	if c.ctx.Err() != nil {
		return ImportStatusFailed
	}

	if time.Since(run.lastRemote) < remoteCancelCheckInterval {
		return ""
	}
	run.lastRemote = time.Now()

	signalled, err := c.cancelSignals.IsSignalled(ctx, run.job.ID)
	if err != nil {
		c.log.Function("checkStop").Er("failed to check cancel signal", err, "jobID", run.job.ID)
		return ""
	}
	if signalled {
		run.handle.cancelled.Store(true)
		return ImportStatusCancelled
	}

	return ""
}

// reportProgress writes the run's progress and reports whether the job is still owned by
// this worker. A failed write keeps the run going; a skipped write means the job left
// processing elsewhere.
func (c *ImportsController) reportProgress(ctx context.Context, run *importRun) bool {
	log := c.log.Function("reportProgress")

	if progress := computeProgress(run.processed, run.total); progress > run.progress {
		run.progress = progress
	}

	updated, err := c.jobRepo.UpdateProgress(ctx, run.job.ID, repositories.ImportProgress{
		Progress:       run.progress,
		ItemsProcessed: run.processed,
		Stats:          run.stats,
		ItemErrors:     run.itemErrors,
	})
	if err != nil {
		log.Er("failed to store import progress", err, "jobID", run.job.ID)
		return true
	}
	if !updated {
		return false
	}

	if run.progress != run.lastProgress {
		run.lastProgress = run.progress
		c.publishRun(events.IMPORT_PROGRESS, run, ImportStatusProcessing)
	}
	return true
}

// abandon stops a run whose job record was finished by someone else. The record is left
// as written.
func (c *ImportsController) abandon(ctx context.Context, run *importRun) {
	log := c.log.Function("abandon")

	if err := c.cancelSignals.Clear(ctx, run.job.ID); err != nil {
		log.Er("failed to clear cancel signal", err, "jobID", run.job.ID)
	}

	log.Warn(
		"Import job left processing elsewhere, stopping",
		"jobID", run.job.ID,
		"itemsProcessed", run.processed,
	)
}

func (c *ImportsController) fail(ctx context.Context, run *importRun, cause error) {
	message := cause.Error()
	c.finish(ctx, run, ImportStatusFailed, &message)
}

func (c *ImportsController) finish(
	ctx context.Context,
	run *importRun,
	status ImportStatus,
	message *string,
) {
	log := c.log.Function("finish")

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(run.startedAt).Seconds()

	finished, err := c.jobRepo.Finish(ctx, run.job.ID, repositories.ImportResult{
		Status:      status,
		Progress:    run.progress,
		Processed:   run.processed,
		Stats:       run.stats,
		ItemErrors:  run.itemErrors,
		Error:       message,
		CompletedAt: completedAt,
		Duration:    duration,
	})
	if err != nil {
		log.Er("failed to finish import job", err, "jobID", run.job.ID, "status", status)
		return
	}

	if err := c.cancelSignals.Clear(ctx, run.job.ID); err != nil {
		log.Er("failed to clear cancel signal", err, "jobID", run.job.ID)
	}

	if !finished {
		log.Warn("Import job was already finished", "jobID", run.job.ID, "status", status)
		return
	}

	log.Info(
		"Import finished",
		"jobID", run.job.ID,
		"status", status,
		"itemsProcessed", run.processed,
		"imported", run.stats.ImportedProducts,
		"errors", run.stats.ErrorsCount,
		"duration", duration,
	)

	run.job.Error = message
	run.job.Duration = &duration
	run.job.CompletedAt = &completedAt
	c.publishRun(events.IMPORT_FINISHED, run, status)
}
