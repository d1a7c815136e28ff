package config

import (
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion       string `mapstructure:"GENERAL_VERSION"`
	Environment          string `mapstructure:"ENVIRONMENT"`
	ServerPort           int    `mapstructure:"SERVER_PORT"`
	DatabaseHost         string `mapstructure:"DB_HOST"`
	DatabasePort         int    `mapstructure:"DB_PORT"`
	DatabaseName         string `mapstructure:"DB_NAME"`
	DatabaseUser         string `mapstructure:"DB_USER"`
	DatabasePassword     string `mapstructure:"DB_PASSWORD"`
	DatabaseCacheAddress string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DB_CACHE_PORT"`
	DatabaseCacheReset   int    `mapstructure:"DB_CACHE_RESET"`
	CorsAllowOrigins     string `mapstructure:"CORS_ALLOW_ORIGINS"`
	SchedulerEnabled     bool   `mapstructure:"SCHEDULER_ENABLED"`
	ImportUploadDir      string `mapstructure:"IMPORT_UPLOAD_DIR"`
	ImportMaxUploadMB    int    `mapstructure:"IMPORT_MAX_UPLOAD_MB"`
	ImportWorkers        int    `mapstructure:"IMPORT_WORKERS"`
	ImportQueueSize      int    `mapstructure:"IMPORT_QUEUE_SIZE"`
	ImportRetentionDays  int    `mapstructure:"IMPORT_RETENTION_DAYS"`
	ImportStaleMinutes   int    `mapstructure:"IMPORT_STALE_MINUTES"`
}

const (
	DefaultImportUploadDir     = "uploads/imports"
	DefaultImportMaxUploadMB   = 50
	DefaultImportWorkers       = 2
	DefaultImportQueueSize     = 64
	DefaultImportRetentionDays = 30
	DefaultImportStaleMinutes  = 5
)

var ConfigInstance Config

func New() (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	viper.AutomaticEnv()

	envVars := []string{
		"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"DB_CACHE_ADDRESS", "DB_CACHE_PORT", "DB_CACHE_RESET",
		"CORS_ALLOW_ORIGINS", "SCHEDULER_ENABLED",
		"IMPORT_UPLOAD_DIR", "IMPORT_MAX_UPLOAD_MB", "IMPORT_WORKERS", "IMPORT_QUEUE_SIZE", "IMPORT_RETENTION_DAYS",
		"IMPORT_STALE_MINUTES",
	}

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	viper.SetDefault("DB_CACHE_RESET", -1)
	viper.SetDefault("IMPORT_UPLOAD_DIR", DefaultImportUploadDir)
	viper.SetDefault("IMPORT_MAX_UPLOAD_MB", DefaultImportMaxUploadMB)
	viper.SetDefault("IMPORT_WORKERS", DefaultImportWorkers)
	viper.SetDefault("IMPORT_QUEUE_SIZE", DefaultImportQueueSize)
	viper.SetDefault("IMPORT_RETENTION_DAYS", DefaultImportRetentionDays)
	viper.SetDefault("IMPORT_STALE_MINUTES", DefaultImportStaleMinutes)

	envVarsSet := viper.IsSet("SERVER_PORT") && viper.IsSet("DB_HOST")

	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info(
		"Successfully initialized config",
		"environment", config.Environment,
		"port", config.ServerPort,
		"importWorkers", config.ImportWorkers,
	)
	return ConfigInstance, nil
}

func GetConfig() Config {
	return ConfigInstance
}

// MaxUploadBytes is the largest feed the upload endpoint accepts.
func (c Config) MaxUploadBytes() int64 {
	if c.ImportMaxUploadMB <= 0 {
		return DefaultImportMaxUploadMB * 1024 * 1024
	}
	return int64(c.ImportMaxUploadMB) * 1024 * 1024
}

// ImportStaleAfter is how long a processing job may go without a progress write before
// another worker may fail it.
func (c Config) ImportStaleAfter() time.Duration {
	if c.ImportStaleMinutes <= 0 {
		return DefaultImportStaleMinutes * time.Minute
	}
	return time.Duration(c.ImportStaleMinutes) * time.Minute
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	if config.ImportUploadDir == "" {
		return log.ErrMsg("Fatal error: IMPORT_UPLOAD_DIR is required")
	}

	if config.ImportWorkers <= 0 {
		return log.Error(
			"Fatal error: IMPORT_WORKERS must be positive",
			"workers", config.ImportWorkers,
		)
	}

	if config.ImportQueueSize <= 0 {
		return log.Error(
			"Fatal error: IMPORT_QUEUE_SIZE must be positive",
			"queueSize", config.ImportQueueSize,
		)
	}

	if config.ImportRetentionDays < 0 {
		return log.Error(
			"Fatal error: IMPORT_RETENTION_DAYS cannot be negative",
			"retentionDays", config.ImportRetentionDays,
		)
	}

	if config.ImportStaleMinutes < 0 {
		return log.Error(
			"Fatal error: IMPORT_STALE_MINUTES cannot be negative",
			"staleMinutes", config.ImportStaleMinutes,
		)
	}

	ConfigInstance = config
	return nil
}
