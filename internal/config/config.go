package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/hai-surveillance-server/internal/domain"
)

// Manager loads and validates application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a configuration manager, reading config.yaml (when
// present), environment variables with the HAI_ prefix, and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/hai-surveillance/")

	viper.SetEnvPrefix("HAI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "hai_surveillance")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 25)
	viper.SetDefault("database.min_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "1m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// NHSN surveillance thresholds
	viper.SetDefault("surveillance.clabsi.min_line_days", 2)
	viper.SetDefault("surveillance.clabsi.note_window_days", 3)

	viper.SetDefault("surveillance.cauti.min_catheter_days", 2)
	viper.SetDefault("surveillance.cauti.min_colony_count_cfu", 100000)
	viper.SetDefault("surveillance.cauti.max_organisms", 2)
	viper.SetDefault("surveillance.cauti.post_removal_window_days", 1)
	viper.SetDefault("surveillance.cauti.note_window_days", 3)

	viper.SetDefault("surveillance.vae.min_ventilation_days", 3)
	viper.SetDefault("surveillance.vae.baseline_period_days", 2)
	viper.SetDefault("surveillance.vae.deterioration_days", 2)
	viper.SetDefault("surveillance.vae.peep_rise_cmh2o", 3.0)
	viper.SetDefault("surveillance.vae.fio2_rise_points", 20.0)
	viper.SetDefault("surveillance.vae.min_antimicrobial_days", 4)
	viper.SetDefault("surveillance.vae.note_window_days", 5)

	viper.SetDefault("surveillance.ssi.default_window_days", 30)
	viper.SetDefault("surveillance.ssi.implant_window_days", 90)
	viper.SetDefault("surveillance.ssi.note_window_days", 7)

	// Clinical data source defaults
	viper.SetDefault("source.base_url", "http://localhost:8089")
	viper.SetDefault("source.timeout", "30s")

	// Note retrieval defaults
	viper.SetDefault("notes.base_url", "http://localhost:8090")
	viper.SetDefault("notes.timeout", "15s")
	viper.SetDefault("notes.note_types", []string{"progress", "nursing", "microbiology"})

	// Fact extraction defaults
	viper.SetDefault("extraction.base_url", "http://localhost:8091")
	viper.SetDefault("extraction.model", "clinical-extract-v2")
	viper.SetDefault("extraction.timeout", "60s")
	viper.SetDefault("extraction.max_attempts", 3)
	viper.SetDefault("extraction.requests_per_second", 2.0)
	viper.SetDefault("extraction.max_tokens", 2048)
	viper.SetDefault("extraction.cache_ttl", "12h")

	// Scheduler defaults
	viper.SetDefault("scheduler.scan_interval", "10m")
	viper.SetDefault("scheduler.scan_lookback", "24h")
	viper.SetDefault("scheduler.worker_count", 4)
	viper.SetDefault("scheduler.batch_size", 50)
	viper.SetDefault("scheduler.enabled_types", []string{"CLABSI", "CAUTI", "VAE", "SSI"})

	// Review store defaults
	viper.SetDefault("review.backend", "postgres")
	viper.SetDefault("review.sqlite_path", "data/reviews.db")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Validate validates the loaded configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if config.Surveillance.CAUTI.MinColonyCountCFU <= 0 {
		return fmt.Errorf("CAUTI colony count threshold must be positive")
	}
	if config.Surveillance.VAE.BaselinePeriodDays < 1 || config.Surveillance.VAE.DeteriorationDays < 1 {
		return fmt.Errorf("VAE window sizes must be at least 1 day")
	}
	if config.Surveillance.SSI.ImplantWindowDays < config.Surveillance.SSI.DefaultWindowDays {
		return fmt.Errorf("SSI implant window must not be shorter than the default window")
	}

	if config.Extraction.MaxAttempts < 1 {
		return fmt.Errorf("extraction max attempts must be at least 1")
	}

	switch config.Review.Backend {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid review backend: %s", config.Review.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted connection string.
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the URL form used by the migration runner.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}
