package config

import (
	"fmt"
	"regexp"
)

// Default configuration values.
const (
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "discovery"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"
	defaultMetricsJob   = "query_clicks_hourly"
	defaultExportIndex  = "query_clicks"
)

// Config holds the full configuration of one job run.
type Config struct {
	Job      JobConfig      `yaml:"job"`
	Tables   TablesConfig   `yaml:"tables"`
	Database DatabaseConfig `yaml:"database"`
	Export   ExportConfig   `yaml:"export"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// JobConfig selects the hour partition to process and the namespace map
// snapshot to join against. All fields are required; there are no sane
// defaults for a reprocessable batch partition.
type JobConfig struct {
	Year     int    `env:"QUERY_CLICKS_YEAR"     yaml:"year"`
	Month    int    `env:"QUERY_CLICKS_MONTH"    yaml:"month"`
	Day      int    `env:"QUERY_CLICKS_DAY"      yaml:"day"`
	Hour     int    `env:"QUERY_CLICKS_HOUR"     yaml:"hour"`
	Snapshot string `env:"QUERY_CLICKS_SNAPSHOT" yaml:"snapshot"`
}

// TablesConfig names the input and output relations.
type TablesConfig struct {
	SearchRequests string `env:"QUERY_CLICKS_SEARCH_REQUEST_TABLE" yaml:"search_requests"`
	PageViews      string `env:"QUERY_CLICKS_PAGE_VIEW_TABLE"      yaml:"page_views"`
	NamespaceMap   string `env:"QUERY_CLICKS_NAMESPACE_MAP_TABLE"  yaml:"namespace_map"`
	Output         string `env:"QUERY_CLICKS_OUTPUT_TABLE"         yaml:"output"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_DISCOVERY_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_DISCOVERY_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_DISCOVERY_USER"     yaml:"user"`
	Password string `env:"POSTGRES_DISCOVERY_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_DISCOVERY_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_DISCOVERY_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// ExportConfig targets the optional relevance-lab Elasticsearch export.
// The export is enabled when URL is non-empty.
type ExportConfig struct {
	URL      string `env:"QUERY_CLICKS_ES_URL"      yaml:"url"`
	Username string `env:"QUERY_CLICKS_ES_USER"     yaml:"username"`
	Password string `env:"QUERY_CLICKS_ES_PASSWORD" yaml:"password"`
	Index    string `env:"QUERY_CLICKS_ES_INDEX"    yaml:"index"`
}

// Enabled reports whether the Elasticsearch export should run.
func (e *ExportConfig) Enabled() bool {
	return e.URL != ""
}

// MetricsConfig targets the optional Prometheus Pushgateway. Pushing is
// enabled when PushgatewayURL is non-empty.
type MetricsConfig struct {
	PushgatewayURL string `env:"QUERY_CLICKS_PUSHGATEWAY_URL" yaml:"pushgateway_url"`
	JobName        string `yaml:"job_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return loadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setDatabaseDefaults(&cfg.Database)
	setLoggingDefaults(&cfg.Logging)
	if cfg.Metrics.JobName == "" {
		cfg.Metrics.JobName = defaultMetricsJob
	}
	if cfg.Export.Index == "" {
		cfg.Export.Index = defaultExportIndex
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Message)
}

// Relation names are interpolated into SQL, so they are restricted to plain
// (optionally schema-qualified) identifiers.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

const (
	minYear  = 2000
	maxMonth = 12
	maxDay   = 31
	maxHour  = 23
)

// Validate checks that every required job parameter is present and sane.
// It runs before any processing; a failure here aborts the run with no
// partition written.
func (c *Config) Validate() error {
	if err := c.Job.validate(); err != nil {
		return err
	}
	if err := c.Tables.validate(); err != nil {
		return err
	}
	return nil
}

func (j *JobConfig) validate() error {
	if j.Year < minYear {
		return &ValidationError{Field: "job.year", Message: "is required"}
	}
	if j.Month < 1 || j.Month > maxMonth {
		return &ValidationError{Field: "job.month", Message: "must be between 1 and 12"}
	}
	if j.Day < 1 || j.Day > maxDay {
		return &ValidationError{Field: "job.day", Message: "must be between 1 and 31"}
	}
	if j.Hour < 0 || j.Hour > maxHour {
		return &ValidationError{Field: "job.hour", Message: "must be between 0 and 23"}
	}
	if j.Snapshot == "" {
		return &ValidationError{Field: "job.snapshot", Message: "is required"}
	}
	return nil
}

func (t *TablesConfig) validate() error {
	tables := []struct {
		field string
		value string
	}{
		{"tables.search_requests", t.SearchRequests},
		{"tables.page_views", t.PageViews},
		{"tables.namespace_map", t.NamespaceMap},
		{"tables.output", t.Output},
	}
	for _, tbl := range tables {
		if tbl.value == "" {
			return &ValidationError{Field: tbl.field, Message: "is required"}
		}
		if !identifierRe.MatchString(tbl.value) {
			return &ValidationError{Field: tbl.field, Message: "is not a valid relation name"}
		}
	}
	return nil
}
