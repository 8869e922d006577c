package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate API config
	if c.API.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Message: "backend base URL is required",
		})
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Message: "invalid backend base URL",
		})
	}

	if c.API.HealthTimeout <= 0 || c.API.HealthTimeout > 5*time.Second {
		errors = append(errors, ValidationError{
			Field:   "api.health_timeout",
			Message: "health_timeout must be between 0 and 5s",
		})
	}

	if c.API.RequestTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "api.request_timeout",
			Message: "request_timeout cannot be negative",
		})
	}

	if c.API.UploadRate <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.upload_rate",
			Message: "upload_rate must be positive",
		})
	}

	// Validate Session config
	if c.Session.TopK < 1 || c.Session.TopK > 10 {
		errors = append(errors, ValidationError{
			Field:   "session.top_k",
			Message: "top_k must be between 1 and 10",
		})
	}

	// Validate extensions format
	for _, ext := range c.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, ValidationError{
				Field:   "watch.extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	if c.UI.StatusTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "ui.status_ttl",
			Message: "status_ttl cannot be negative",
		})
	}

	return errors
}
