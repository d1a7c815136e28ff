package services

import (
	"gekoimport/config"
	"gekoimport/internal/database"
	"gekoimport/internal/repositories"
)

type Service struct {
	Transaction   *TransactionService
	Scheduler     *SchedulerService
	UpsertEngine  *UpsertEngine
	ImportCancel  *ImportCancelService
	UploadStorage *UploadStorageService
}

func New(db database.DB, config config.Config, repos repositories.Repository) Service {
	transactionService := NewTransactionService(db)

	return Service{
		Transaction:   transactionService,
		Scheduler:     NewSchedulerService(),
		UpsertEngine:  NewUpsertEngine(transactionService, repos.Catalog),
		ImportCancel:  NewImportCancelService(db.Cache.Imports),
		UploadStorage: NewUploadStorageService(config),
	}
}
