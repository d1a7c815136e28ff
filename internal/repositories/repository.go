package repositories

import (
	"gekoimport/internal/database"
)

type Repository struct {
	Catalog   CatalogRepository
	ImportJob ImportJobRepository
}

func New(db database.DB) Repository {
	return Repository{
		Catalog:   NewCatalogRepository(db),
		ImportJob: NewImportJobRepository(db),
	}
}
