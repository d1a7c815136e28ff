package importsController

import (
	"context"
	"errors"
	"fmt"
	"gekoimport/config"
	"gekoimport/internal/events"
	. "gekoimport/internal/models"
	"gekoimport/internal/repositories"
	"gekoimport/internal/services"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	contextutil "gekoimport/internal/context"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

const (
	InterruptedMessage        = "import interrupted by server shutdown"
	StaleMessage              = "import interrupted: worker stopped reporting progress"
	remoteCancelCheckInterval = time.Second
)

var (
	ErrJobNotFound    = errors.New("import job not found")
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrUploadTooLarge = services.ErrUploadTooLarge

	errStoreUnavailable = errors.New("catalog store unavailable")
)

// ItemPersister writes one resolved feed item atomically.
type ItemPersister interface {
	Persist(ctx context.Context, set *services.ResolvedEntitySet) (*services.ItemOutcome, error)
}

type EventPublisher interface {
	Publish(channel events.Channel, event events.Event) error
}

type ImportsControllerInterface interface {
	Submit(ctx context.Context, fileName string, size int64, file io.Reader) (*ImportJob, error)
	Get(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	Cancel(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	History(ctx context.Context, limit int) ([]*ImportJob, error)
}

// ImportsController owns the import job lifecycle. Uploads become pending jobs on a
// buffered queue; a fixed pool of workers drains it, one job per worker, one item at a
// time. The controller is the only writer of job records.
type ImportsController struct {
	jobRepo       repositories.ImportJobRepository
	persister     ItemPersister
	storage       *services.UploadStorageService
	cancelSignals *services.ImportCancelService
	publisher     EventPublisher
	config        config.Config
	log           logger.Logger

	queue   chan uuid.UUID
	mu      sync.Mutex
	queued  map[uuid.UUID]bool
	active  map[uuid.UUID]*activeImport
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type activeImport struct {
	cancelled atomic.Bool
}

func New(
	repos repositories.Repository,
	services services.Service,
	publisher EventPublisher,
	config config.Config,
) *ImportsController {
	queueSize := config.ImportQueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ImportsController{
		jobRepo:       repos.ImportJob,
		persister:     services.UpsertEngine,
		storage:       services.UploadStorage,
		cancelSignals: services.ImportCancel,
		publisher:     publisher,
		config:        config,
		log:           logger.New("importsController"),
		queue:         make(chan uuid.UUID, queueSize),
		queued:        make(map[uuid.UUID]bool),
		active:        make(map[uuid.UUID]*activeImport),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start launches the worker pool.
func (c *ImportsController) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	c.started = true

	workers := c.config.ImportWorkers
	if workers <= 0 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	c.log.Function("Start").Info("Import workers started", "workers", workers)
}

// Stop signals the workers and waits for them. A job that is mid-stream finishes its
// current item and is then marked failed; queued jobs stay pending for the next start.
func (c *ImportsController) Stop(ctx context.Context) error {
	log := c.log.Function("Stop")

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Import workers stopped")
		return nil
	case <-ctx.Done():
		return log.Err("timed out waiting for import workers", ctx.Err())
	}
}

// Recover fails stale processing jobs left by a dead process and re-queues pending ones.
// Jobs still owned by a live instance keep writing progress and are left alone.
func (c *ImportsController) Recover(ctx context.Context) error {
	if _, err := c.FailStale(ctx); err != nil {
		return err
	}

	if _, err := c.DispatchPending(ctx); err != nil {
		return err
	}

	return nil
}

// FailStale fails processing jobs without a progress write for ImportStaleAfter, except
// the ones running on this instance.
func (c *ImportsController) FailStale(ctx context.Context) (int64, error) {
	log := c.log.Function("FailStale")

	c.mu.Lock()
	running := make([]uuid.UUID, 0, len(c.active))
	for id := range c.active {
		running = append(running, id)
	}
	c.mu.Unlock()

	staleBefore := time.Now().Add(-c.config.ImportStaleAfter())
	failed, err := c.jobRepo.FailStale(ctx, StaleMessage, time.Now().UTC(), staleBefore, running)
	if err != nil {
		return 0, log.Err("failed to fail stale jobs", err)
	}
	if failed > 0 {
		log.Warn("Marked stale import jobs failed", "count", failed, "staleAfter", c.config.ImportStaleAfter())
	}

	return failed, nil
}

// DispatchPending queues pending jobs that are not already queued or running.
func (c *ImportsController) DispatchPending(ctx context.Context) (int, error) {
	log := c.log.Function("DispatchPending")

	jobs, err := c.jobRepo.ListByStatus(ctx, ImportStatusPending)
	if err != nil {
		return 0, log.Err("failed to list pending jobs", err)
	}

	dispatched := 0
	for _, job := range jobs {
		if c.enqueue(job.ID) {
			dispatched++
		}
	}

	if dispatched > 0 {
		log.Info("Dispatched pending import jobs", "count", dispatched, "pending", len(jobs))
	}
	return dispatched, nil
}

// PruneHistory deletes finished jobs older than retention together with their uploads,
// and any upload older than retention that no job refers to.
func (c *ImportsController) PruneHistory(ctx context.Context, retention time.Duration) (int, error) {
	log := c.log.Function("PruneHistory")

	cutoff := time.Now().UTC().Add(-retention)

	jobs, err := c.jobRepo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, log.Err("failed to delete expired jobs", err)
	}
	for _, job := range jobs {
		c.storage.Remove(job.FilePath)
	}

	keep := make(map[string]bool)
	for _, status := range []ImportStatus{ImportStatusPending, ImportStatusProcessing} {
		live, err := c.jobRepo.ListByStatus(ctx, status)
		if err != nil {
			return len(jobs), log.Err("failed to list live jobs", err, "status", status)
		}
		for _, job := range live {
			keep[job.FilePath] = true
		}
	}

	if _, err := c.storage.CleanupOlderThan(ctx, cutoff, keep); err != nil {
		return len(jobs), err
	}

	return len(jobs), nil
}

func (c *ImportsController) Submit(
	ctx context.Context,
	fileName string,
	size int64,
	file io.Reader,
) (*ImportJob, error) {
	log := c.log.Function("Submit")

	fileName = filepath.Base(strings.TrimSpace(fileName))
	if !strings.EqualFold(filepath.Ext(fileName), ".xml") {
		log.Warn("Rejected upload", "fileName", fileName, "reason", "not an xml file")
		return nil, fmt.Errorf("%w: only .xml files are accepted", ErrInvalidUpload)
	}

	maxBytes := c.config.MaxUploadBytes()
	if size > maxBytes {
		log.Warn("Rejected upload", "fileName", fileName, "size", size, "maxBytes", maxBytes)
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrUploadTooLarge, size, maxBytes)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, log.Err("failed to generate job id", err)
	}

	stored, err := c.storage.Save(ctx, id, file, maxBytes)
	if err != nil {
		if errors.Is(err, ErrUploadTooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", err, maxBytes)
		}
		return nil, err
	}

	traceID, _ := contextutil.GetTraceID(ctx)

	job := &ImportJob{
		FileName: fileName,
		FilePath: stored.Path,
		FileSize: stored.Size,
		TraceID:  traceID,
		Status:   ImportStatusPending,
	}
	job.ID = id

	if err := c.jobRepo.Create(ctx, job); err != nil {
		c.storage.Remove(stored.Path)
		return nil, err
	}

	log.Info(
		"Import job created",
		"jobID", job.ID,
		"traceID", traceID,
		"fileName", fileName,
		"size", stored.Size,
	)
	c.publish(events.IMPORT_SUBMITTED, job)

	c.enqueue(job.ID)

	return job, nil
}

func (c *ImportsController) Get(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	job, err := c.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// Cancel stops a job. Pending jobs are cancelled immediately; a processing job stops
// before its next item. Cancelling a finished job changes nothing.
func (c *ImportsController) Cancel(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	log := c.log.Function("Cancel")

	job, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}

	cancelled, err := c.jobRepo.CancelPending(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if cancelled {
		log.Info("Pending import job cancelled", "jobID", id)
	} else {
		// The job is processing, here or on another instance.
		c.mu.Lock()
		if handle, ok := c.active[id]; ok {
			handle.cancelled.Store(true)
		}
		c.mu.Unlock()

		if err := c.cancelSignals.Signal(ctx, id); err != nil {
			log.Er("failed to share cancel request", err, "jobID", id)
		}
		log.Info("Cancellation requested for running import job", "jobID", id)
	}

	job, err = c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cancelled {
		c.publish(events.IMPORT_FINISHED, job)
	}

	return job, nil
}

func (c *ImportsController) History(ctx context.Context, limit int) ([]*ImportJob, error) {
	return c.jobRepo.List(ctx, limit)
}

func (c *ImportsController) enqueue(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queued[id] {
		return false
	}

	select {
	case c.queue <- id:
		c.queued[id] = true
		return true
	default:
		c.log.Function("enqueue").
			Warn("Import queue full, job stays pending until the next dispatch", "jobID", id)
		return false
	}
}

func (c *ImportsController) worker(n int) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case id := <-c.queue:
			c.run(id)
		}
	}
}

func (c *ImportsController) run(id uuid.UUID) {
	log := c.log.Function("run")

	handle := &activeImport{}
	c.mu.Lock()
	c.active[id] = handle
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.active, id)
		delete(c.queued, id)
		c.mu.Unlock()
	}()

	if c.ctx.Err() != nil {
		return
	}

	// Job work is detached from shutdown; shutdown is observed between items instead.
	ctx := contextutil.WithImportJob(context.WithoutCancel(c.ctx), id)

	startedAt := time.Now().UTC()
	claimed, err := c.jobRepo.MarkProcessing(ctx, id, startedAt)
	if err != nil {
		log.Er("failed to claim import job", err, "jobID", id)
		return
	}
	if !claimed {
		log.Debug("Import job no longer pending, skipping", "jobID", id)
		return
	}

	job, err := c.jobRepo.GetByID(ctx, id)
	if err != nil {
		log.Er("failed to load claimed import job", err, "jobID", id)
		return
	}
	if job == nil {
		log.Warn("Claimed import job disappeared", "jobID", id)
		return
	}

	c.process(ctx, job, handle, startedAt)
}
