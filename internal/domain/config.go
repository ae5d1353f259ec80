package domain

import "time"

// Config is the full application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Surveillance SurveillanceConfig `mapstructure:"surveillance"`
	Source       SourceConfig       `mapstructure:"source"`
	Notes        NotesConfig        `mapstructure:"notes"`
	Extraction   ExtractionConfig   `mapstructure:"extraction"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Review       ReviewConfig       `mapstructure:"review"`
}

// ServerConfig configures the HTTP review API.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig configures the PostgreSQL surveillance store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig configures the Redis cache used for note text and
// extraction responses.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SurveillanceConfig bundles the per-type eligibility thresholds. Values
// are threaded explicitly into detector and rules-engine constructors so
// tests can vary them per case.
type SurveillanceConfig struct {
	CLABSI CLABSIConfig `mapstructure:"clabsi"`
	CAUTI  CAUTIConfig  `mapstructure:"cauti"`
	VAE    VAEConfig    `mapstructure:"vae"`
	SSI    SSIConfig    `mapstructure:"ssi"`
}

// CLABSIConfig holds central-line surveillance thresholds.
type CLABSIConfig struct {
	MinLineDays    int `mapstructure:"min_line_days"`
	NoteWindowDays int `mapstructure:"note_window_days"`
}

// CAUTIConfig holds urinary-catheter surveillance thresholds.
type CAUTIConfig struct {
	MinCatheterDays       int   `mapstructure:"min_catheter_days"`
	MinColonyCountCFU     int64 `mapstructure:"min_colony_count_cfu"`
	MaxOrganisms          int   `mapstructure:"max_organisms"`
	PostRemovalWindowDays int   `mapstructure:"post_removal_window_days"`
	NoteWindowDays        int   `mapstructure:"note_window_days"`
}

// VAEConfig holds ventilator-event surveillance thresholds.
type VAEConfig struct {
	MinVentilationDays int     `mapstructure:"min_ventilation_days"`
	BaselinePeriodDays int     `mapstructure:"baseline_period_days"`
	DeteriorationDays  int     `mapstructure:"deterioration_days"`
	PEEPRiseCmH2O      float64 `mapstructure:"peep_rise_cmh2o"`
	FiO2RisePoints     float64 `mapstructure:"fio2_rise_points"`
	MinAntimicrobDays  int     `mapstructure:"min_antimicrobial_days"`
	NoteWindowDays     int     `mapstructure:"note_window_days"`
}

// SSIConfig holds surgical-site surveillance thresholds.
type SSIConfig struct {
	DefaultWindowDays int `mapstructure:"default_window_days"`
	ImplantWindowDays int `mapstructure:"implant_window_days"`
	NoteWindowDays    int `mapstructure:"note_window_days"`
}

// NoteWindowDaysFor returns the note lookback window for a type.
func (c SurveillanceConfig) NoteWindowDaysFor(t HAIType) int {
	switch t {
	case HAITypeCLABSI:
		return c.CLABSI.NoteWindowDays
	case HAITypeCAUTI:
		return c.CAUTI.NoteWindowDays
	case HAITypeVAE:
		return c.VAE.NoteWindowDays
	case HAITypeSSI:
		return c.SSI.NoteWindowDays
	}
	return 3
}

// SourceConfig configures the clinical data source gateway client the
// detectors read from.
type SourceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotesConfig configures the note retrieval service client.
type NotesConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	NoteTypes []string      `mapstructure:"note_types"`
}

// ExtractionConfig configures the fact extraction service client.
type ExtractionConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// SchedulerConfig configures the periodic batch runs.
type SchedulerConfig struct {
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	ScanLookback time.Duration `mapstructure:"scan_lookback"`
	WorkerCount  int           `mapstructure:"worker_count"`
	BatchSize    int           `mapstructure:"batch_size"`
	EnabledTypes []string      `mapstructure:"enabled_types"`
}

// ReviewConfig configures the review store backend.
type ReviewConfig struct {
	Backend    string `mapstructure:"backend"` // "postgres" or "sqlite"
	SQLitePath string `mapstructure:"sqlite_path"`
}
