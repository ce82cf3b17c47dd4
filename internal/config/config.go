package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains OpenAI parameters shared by every binary.
type Common struct {
	OpenAIKey     string
	OpenAIBaseURL string
	DefaultModel  string
	AllowedModels []string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr         string
	SourceLimit      int
	AutoDomainLimit  int
	DiscoveryTimeout time.Duration
	SearchTimeout    time.Duration
}

// CLI configures the terminal client.
type CLI struct {
	ServerURL      string
	RequestTimeout time.Duration
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common: Common{
			OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			DefaultModel:  getEnv("OPENAI_MODEL", "gpt-4o"),
			AllowedModels: splitAndTrim(getEnv("OPENAI_ALLOWED_MODELS", "gpt-4o,gpt-4o-mini,gpt-4.1,gpt-4.1-mini")),
		},
		BindAddr:         getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		SourceLimit:      getInt("API_SOURCE_LIMIT", 5),
		AutoDomainLimit:  getInt("AUTO_DOMAIN_LIMIT", 7),
		DiscoveryTimeout: getDuration("DISCOVERY_TIMEOUT", "25s"),
		SearchTimeout:    getDuration("SEARCH_TIMEOUT", "90s"),
	}

	if c.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if c.DefaultModel == "" {
		return nil, fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	if c.SourceLimit <= 0 {
		return nil, fmt.Errorf("API_SOURCE_LIMIT must be positive")
	}
	if c.AutoDomainLimit <= 0 {
		return nil, fmt.Errorf("AUTO_DOMAIN_LIMIT must be positive")
	}
	if c.DiscoveryTimeout <= 0 {
		return nil, fmt.Errorf("DISCOVERY_TIMEOUT must be positive")
	}
	if c.SearchTimeout <= 0 {
		return nil, fmt.Errorf("SEARCH_TIMEOUT must be positive")
	}
	if !contains(c.AllowedModels, c.DefaultModel) {
		c.AllowedModels = append(c.AllowedModels, c.DefaultModel)
	}

	return c, nil
}

// LoadCLI builds a CLI config from environment variables.
func LoadCLI() (*CLI, error) {
	c := &CLI{
		ServerURL:      getEnv("NTI_SERVER_URL", "http://localhost:8080"),
		RequestTimeout: getDuration("NTI_REQUEST_TIMEOUT", "3m"),
	}

	if c.RequestTimeout <= 0 {
		return nil, fmt.Errorf("NTI_REQUEST_TIMEOUT must be positive")
	}

	return c, nil
}

// ModelAllowed reports whether the requested model is on the allow-list.
func (c *Common) ModelAllowed(model string) bool {
	return contains(c.AllowedModels, model)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
