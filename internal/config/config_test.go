package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Job: JobConfig{
			Year:     2024,
			Month:    3,
			Day:      15,
			Hour:     9,
			Snapshot: "2024-03",
		},
		Tables: TablesConfig{
			SearchRequests: "event.cirrussearch_request",
			PageViews:      "pageview_hourly",
			NamespaceMap:   "namespace_map",
			Output:         "query_clicks_hourly",
		},
	}
	setDefaults(cfg)
	return cfg
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_HourZeroIsValid(t *testing.T) {
	cfg := validConfig()
	cfg.Job.Hour = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RequiredParameters(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"missing year", func(c *Config) { c.Job.Year = 0 }, "job.year"},
		{"month out of range", func(c *Config) { c.Job.Month = 13 }, "job.month"},
		{"day out of range", func(c *Config) { c.Job.Day = 32 }, "job.day"},
		{"hour out of range", func(c *Config) { c.Job.Hour = 24 }, "job.hour"},
		{"missing snapshot", func(c *Config) { c.Job.Snapshot = "" }, "job.snapshot"},
		{"missing search request table", func(c *Config) { c.Tables.SearchRequests = "" }, "tables.search_requests"},
		{"missing page view table", func(c *Config) { c.Tables.PageViews = "" }, "tables.page_views"},
		{"missing namespace map table", func(c *Config) { c.Tables.NamespaceMap = "" }, "tables.namespace_map"},
		{"missing output table", func(c *Config) { c.Tables.Output = "" }, "tables.output"},
		{"table name with sql injection", func(c *Config) { c.Tables.Output = "x; DROP TABLE y" }, "tables.output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	yaml := `
job:
  year: 2024
  month: 3
  day: 15
  hour: 9
  snapshot: "2024-03"
tables:
  search_requests: cirrussearch_request
  page_views: pageview_hourly
  namespace_map: namespace_map
  output: query_clicks_hourly
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("QUERY_CLICKS_HOUR", "17")
	t.Setenv("QUERY_CLICKS_SNAPSHOT", "2024-04")
	t.Setenv("POSTGRES_DISCOVERY_HOST", "db.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 17, cfg.Job.Hour, "env overrides yaml")
	assert.Equal(t, "2024-04", cfg.Job.Snapshot)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 2024, cfg.Job.Year, "yaml value survives without env")
	assert.Equal(t, defaultDBPort, cfg.Database.Port, "defaults fill unset values")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
