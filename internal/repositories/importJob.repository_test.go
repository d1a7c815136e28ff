package repositories_test

import (
	"context"
	"gekoimport/internal/database"
	"gekoimport/internal/models"
	"gekoimport/internal/repositories"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) database.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.DB{SQL: gormDB}
	require.NoError(t, db.MigrateModels())
	return db
}

func createPendingJob(t *testing.T, repo repositories.ImportJobRepository, name string) *models.ImportJob {
	t.Helper()

	job := &models.ImportJob{FileName: name, FilePath: "/tmp/" + name, FileSize: 42}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEqual(t, uuid.Nil, job.ID)
	return job
}

func TestImportJobRepository_CreateAndGet(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	ctx := context.Background()

	job := createPendingJob(t, repo, "feed.xml")

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ImportStatusPending, got.Status)
	assert.Equal(t, "feed.xml", got.FileName)
	assert.Equal(t, 0, got.Progress)

	missing, err := repo.GetByID(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestImportJobRepository_MarkProcessingOnlyOnce(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	ctx := context.Background()
	job := createPendingJob(t, repo, "feed.xml")

	claimed, err := repo.MarkProcessing(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.MarkProcessing(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed, "a job already processing cannot be claimed again")

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusProcessing, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestImportJobRepository_ProgressNeverDecreases(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	ctx := context.Background()
	job := createPendingJob(t, repo, "feed.xml")

	_, err := repo.MarkProcessing(ctx, job.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.SetTotalItems(ctx, job.ID, 10))

	applied, err := repo.UpdateProgress(ctx, job.ID, repositories.ImportProgress{
		Progress:       50,
		ItemsProcessed: 5,
		Stats:          models.ImportStats{TotalProducts: 10, ImportedProducts: 5},
	})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.UpdateProgress(ctx, job.ID, repositories.ImportProgress{
		Progress:       40,
		ItemsProcessed: 4,
	})
	require.NoError(t, err)
	assert.False(t, applied, "stale snapshot must not overwrite newer progress")

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, 5, got.ItemsProcessed)
	assert.Equal(t, 10, got.TotalItems)
	assert.Equal(t, 5, got.Stats.Data().ImportedProducts)
}

func TestImportJobRepository_TerminalStatusNeverRegresses(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	ctx := context.Background()
	job := createPendingJob(t, repo, "feed.xml")

	_, err := repo.MarkProcessing(ctx, job.ID, time.Now())
	require.NoError(t, err)

	message := "cancelled by operator"
	finished, err := repo.Finish(ctx, job.ID, repositories.ImportResult{
		Status:      models.ImportStatusCancelled,
		Progress:    30,
		Processed:   3,
		CompletedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, finished)

	finished, err = repo.Finish(ctx, job.ID, repositories.ImportResult{
		Status:      models.ImportStatusFailed,
		Error:       &message,
		CompletedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, finished)

	applied, err := repo.UpdateProgress(ctx, job.ID, repositories.ImportProgress{Progress: 90, ItemsProcessed: 9})
	require.NoError(t, err)
	assert.False(t, applied)

	claimed, err := repo.MarkProcessing(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCancelled, got.Status)
	assert.Equal(t, 30, got.Progress)
	assert.Nil(t, got.Error)
}

func TestImportJobRepository_FinishRejectsNonTerminalStatus(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	job := createPendingJob(t, repo, "feed.xml")

	_, err := repo.Finish(context.Background(), job.ID, repositories.ImportResult{
		Status: models.ImportStatusProcessing,
	})
	assert.Error(t, err)
}

func TestImportJobRepository_CancelPending(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	ctx := context.Background()

	pending := createPendingJob(t, repo, "pending.xml")
	cancelled, err := repo.CancelPending(ctx, pending.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = repo.CancelPending(ctx, pending.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, cancelled)

	running := createPendingJob(t, repo, "running.xml")
	_, err = repo.MarkProcessing(ctx, running.ID, time.Now())
	require.NoError(t, err)

	cancelled, err = repo.CancelPending(ctx, running.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, cancelled, "processing jobs are cancelled by the worker, not directly")
}

func TestImportJobRepository_FailStale(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	ctx := context.Background()

	running := createPendingJob(t, repo, "running.xml")
	_, err := repo.MarkProcessing(ctx, running.ID, time.Now())
	require.NoError(t, err)
	owned := createPendingJob(t, repo, "owned.xml")
	_, err = repo.MarkProcessing(ctx, owned.ID, time.Now())
	require.NoError(t, err)
	pending := createPendingJob(t, repo, "pending.xml")

	count, err := repo.FailStale(ctx, "interrupted", time.Now(), time.Now().Add(-time.Hour), nil)
	require.NoError(t, err)
	assert.Zero(t, count, "recently written jobs are not stale")

	later := time.Now().Add(time.Hour)
	count, err = repo.FailStale(ctx, "interrupted", time.Now(), later, []uuid.UUID{owned.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := repo.GetByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "interrupted", *got.Error)

	got, err = repo.GetByID(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusProcessing, got.Status, "excluded jobs are left alone")

	got, err = repo.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusPending, got.Status)
}

func TestImportJobRepository_ListAndPrune(t *testing.T) {
	repo := repositories.NewImportJobRepository(setupTestDB(t))
	ctx := context.Background()

	old := createPendingJob(t, repo, "old.xml")
	_, err := repo.CancelPending(ctx, old.ID, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)

	recent := createPendingJob(t, repo, "recent.xml")
	_, err = repo.CancelPending(ctx, recent.ID, time.Now())
	require.NoError(t, err)

	active := createPendingJob(t, repo, "active.xml")

	jobs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, active.ID, jobs[0].ID, "newest first")

	jobs, err = repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	pending, err := repo.ListByStatus(ctx, models.ImportStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, active.ID, pending[0].ID)

	deleted, err := repo.DeleteFinishedBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, old.ID, deleted[0].ID)

	got, err := repo.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	jobs, err = repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
