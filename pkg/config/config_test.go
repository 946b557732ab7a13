package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.DefaultDataURI = "file:///etc/trawler/default_data.json"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejections(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.DefaultDataURI = "file:///etc/trawler/default_data.json"
		return cfg
	}

	cfg := base()
	cfg.DefaultDataURI = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = base()
	cfg.Storage.Driver = "memcached"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = base()
	cfg.Concurrency = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = base()
	cfg.Review.Host = "review.example.org"
	cfg.Review.Port = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = base()
	cfg.LogLevel = "loud"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestYAMLRoundtrip(t *testing.T) {
	const doc = `
default_data_uri: https://example.org/default_data.json
corrections_uri: https://example.org/corrections.json
program_list_uri: https://example.org/programs.yaml
concurrency: 8
storage:
  driver: localfs
  path: /var/lib/trawler
sources:
  root: /var/cache/trawler/sources
  collect_stats: true
review:
  host: review.example.org
  port: 29418
  username: trawler
  key_file: /etc/trawler/id_rsa
members:
  look_ahead: 5
  rescan_days: 14
metrics:
  url: http://metrics.example.org:8086
  database: harvest
`
	cfg := Default()
	require.NoError(t, yaml.Unmarshal([]byte(doc), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.org/default_data.json", cfg.DefaultDataURI)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, DriverLocalFS, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/trawler", cfg.Storage.Path)
	assert.Equal(t, "review.example.org", cfg.Review.Host)
	assert.Equal(t, 29418, cfg.Review.Port)
	assert.Equal(t, 5, cfg.Members.LookAhead)
	assert.Equal(t, "harvest", cfg.Metrics.Database)
	assert.Equal(t, "info", cfg.LogLevel, "defaults survive partial documents")
}
