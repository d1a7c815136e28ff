package controllers

import (
	"gekoimport/config"
	"gekoimport/internal/events"
	"gekoimport/internal/repositories"
	"gekoimport/internal/services"

	importsController "gekoimport/internal/controllers/imports"
)

type Controllers struct {
	Imports *importsController.ImportsController
}

func New(
	services services.Service,
	repos repositories.Repository,
	eventBus *events.EventBus,
	config config.Config,
) Controllers {
	return Controllers{
		Imports: importsController.New(repos, services, eventBus, config),
	}
}
