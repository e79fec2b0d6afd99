package bootstrap

import (
	"fmt"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/config"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/logger"
)

// LoadConfig loads and validates the job configuration. Any missing required
// parameter aborts here, before anything is read or written.
func LoadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}

	return cfg, nil
}

// CreateLogger creates the job logger from configuration.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("job", "query_clicks_hourly")), nil
}
