package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL        string        `yaml:"base_url"`
		HealthPath     string        `yaml:"health_path"`
		HealthTimeout  time.Duration `yaml:"health_timeout"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		UploadRate     float64       `yaml:"upload_rate"`
	} `yaml:"api"`

	Session struct {
		TopK      int  `yaml:"top_k"`
		Streaming bool `yaml:"streaming"`
	} `yaml:"session"`

	Watch struct {
		Dir        string   `yaml:"dir"`
		Extensions []string `yaml:"extensions"`
	} `yaml:"watch"`

	Log struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`

	UI struct {
		StatusTTL   time.Duration `yaml:"status_ttl"`
		ShowSources bool          `yaml:"show_sources"`
	} `yaml:"ui"`
}

// LoadConfig reads the YAML config at path, or the first one found in the
// default locations. A .env file in the working directory is loaded first so
// its variables can override file values.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/askpdf/config.yaml"),
			"/etc/askpdf/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// newConfig returns a config holding the defaults that a zero value cannot
// express, so YAML can still turn them off.
func newConfig() *Config {
	config := &Config{}
	config.Session.Streaming = true
	config.UI.ShowSources = true
	return config
}

func applyDefaults(config *Config) {
	if config.API.BaseURL == "" {
		config.API.BaseURL = "http://127.0.0.1:8000/api"
	}
	if config.API.HealthPath == "" {
		config.API.HealthPath = "/"
	}
	if config.API.HealthTimeout == 0 {
		config.API.HealthTimeout = 5 * time.Second
	}
	if config.API.UploadRate == 0 {
		config.API.UploadRate = 2
	}

	if config.Session.TopK == 0 {
		config.Session.TopK = 5
	}

	if len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = []string{".pdf"}
	}

	if config.Log.File == "" {
		config.Log.File = "askpdf.log"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.UI.StatusTTL == 0 {
		config.UI.StatusTTL = 10 * time.Second
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("ASKPDF_API_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if logFile := os.Getenv("ASKPDF_LOG_FILE"); logFile != "" {
		config.Log.File = logFile
	}
	if topK := os.Getenv("ASKPDF_TOP_K"); topK != "" {
		if n, err := strconv.Atoi(topK); err == nil {
			config.Session.TopK = n
		}
	}
}
