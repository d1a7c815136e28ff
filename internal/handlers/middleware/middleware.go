package middleware

import (
	"gekoimport/config"
	"gekoimport/internal/database"
	"gekoimport/internal/events"

	logger "github.com/Bparsons0904/goLogger"
)

type Middleware struct {
	DB       database.DB
	Config   config.Config
	log      logger.Logger
	eventBus *events.EventBus
}

func New(
	db database.DB,
	eventBus *events.EventBus,
	config config.Config,
) Middleware {
	log := logger.New("middleware")

	return Middleware{
		DB:       db,
		Config:   config,
		log:      log,
		eventBus: eventBus,
	}
}
