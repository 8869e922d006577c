package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
api:
  base_url: "http://rag.internal:9000/api"
  health_path: "/docs"
  health_timeout: 3s
  request_timeout: 2m
  upload_rate: 1.5

session:
  top_k: 8
  streaming: false

watch:
  dir: "/data/inbox"
  extensions:
    - ".pdf"

log:
  file: "/var/log/askpdf.log"
  level: "debug"

ui:
  status_ttl: 30s
  show_sources: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://rag.internal:9000/api", config.API.BaseURL)
	assert.Equal(t, "/docs", config.API.HealthPath)
	assert.Equal(t, 3*time.Second, config.API.HealthTimeout)
	assert.Equal(t, 2*time.Minute, config.API.RequestTimeout)
	assert.Equal(t, 1.5, config.API.UploadRate)
	assert.Equal(t, 8, config.Session.TopK)
	assert.False(t, config.Session.Streaming)
	assert.Equal(t, "/data/inbox", config.Watch.Dir)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, 30*time.Second, config.UI.StatusTTL)
	assert.False(t, config.UI.ShowSources)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("session:\n  top_k: 2\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000/api", config.API.BaseURL)
	assert.Equal(t, "/", config.API.HealthPath)
	assert.Equal(t, 5*time.Second, config.API.HealthTimeout)
	assert.Equal(t, 2.0, config.API.UploadRate)
	assert.Equal(t, 2, config.Session.TopK)
	assert.True(t, config.Session.Streaming)
	assert.True(t, config.UI.ShowSources)
	assert.Equal(t, []string{".pdf"}, config.Watch.Extensions)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("session: [unclosed"), 0644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "error parsing config file")
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := newConfig()
		applyDefaults(c)
		return *c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "top_k boundaries accepted",
			mutate: func(c *Config) {
				c.Session.TopK = 10
			},
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.API.BaseURL = "localhost:8000"
				c.API.HealthTimeout = 10 * time.Second
				c.API.RequestTimeout = -time.Second
				c.API.UploadRate = 0
				c.Session.TopK = 11
				c.Watch.Extensions = []string{"pdf"}
				c.UI.StatusTTL = -time.Second
			},
			errorMessages: []string{
				"api.base_url: invalid backend base URL",
				"api.health_timeout: health_timeout must be between 0 and 5s",
				"api.request_timeout: request_timeout cannot be negative",
				"api.upload_rate: upload_rate must be positive",
				"session.top_k: top_k must be between 1 and 10",
				"watch.extensions: invalid extension format: pdf",
				"ui.status_ttl: status_ttl cannot be negative",
			},
		},
		{
			name: "missing base url and zero top_k",
			mutate: func(c *Config) {
				c.API.BaseURL = ""
				c.Session.TopK = 0
			},
			errorMessages: []string{
				"api.base_url: backend base URL is required",
				"session.top_k: top_k must be between 1 and 10",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Equal(t, msg, errors[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ASKPDF_API_URL", "http://env-backend:8000/api")
	t.Setenv("ASKPDF_LOG_FILE", "/tmp/env.log")
	t.Setenv("ASKPDF_TOP_K", "9")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-backend:8000/api", config.API.BaseURL)
	assert.Equal(t, "/tmp/env.log", config.Log.File)
	assert.Equal(t, 9, config.Session.TopK)
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("ASKPDF_API_URL", "")
	os.Unsetenv("ASKPDF_API_URL")

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("ASKPDF_API_URL=http://dotenv:8000/api\n"), 0644))

	require.NoError(t, loadDotEnv(envPath))
	assert.Equal(t, "http://dotenv:8000/api", os.Getenv("ASKPDF_API_URL"))

	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
