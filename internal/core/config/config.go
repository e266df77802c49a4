// Package config provides configuration management for the cepgate service.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/solatis/cepgate/internal/correlation"
	"github.com/solatis/cepgate/internal/types"
)

// ServiceConfig holds configuration for the event gateway.
type ServiceConfig struct {
	HTTPHost string
	HTTPPort int
	GRPCPort int

	// CorrelatorHeader names the inbound and outbound correlator header.
	CorrelatorHeader string
	// ActionURL is the target for result actions. Empty disables dispatch.
	ActionURL string

	MaxBodySize     int64
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration

	DBURL     string
	LogLevel  string
	LogFormat string

	// Statements are loaded into the in-process engine on provisioning.
	Statements []StatementConfig
}

// StatementConfig declares one engine statement.
type StatementConfig struct {
	Name      string         `mapstructure:"name"`
	EventType string         `mapstructure:"event_type"`
	Filter    map[string]any `mapstructure:"filter"`
	Select    []string       `mapstructure:"select"`
}

// DefaultServiceConfig returns configuration with default values.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		HTTPHost:         "0.0.0.0",
		HTTPPort:         8080,
		GRPCPort:         50051,
		CorrelatorHeader: correlation.DefaultHeader,
		MaxBodySize:      types.MaxPayloadSize,
		ReadTimeout:      30 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		DBURL:            "sqlite://./data/cepgate.db",
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// HTTPAddr returns the HTTP listen address.
func (c *ServiceConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// GRPCAddr returns the gRPC health listen address.
func (c *ServiceConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.GRPCPort)
}

// Validate checks the configuration after programmatic overrides.
func (c *ServiceConfig) Validate() error {
	return validateConfig(c)
}

// validateConfig checks port ranges, positive sizes and timeouts, header name
// and the action URL shape.
func validateConfig(cfg *ServiceConfig) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", cfg.HTTPPort)
	}
	if cfg.GRPCPort <= 0 || cfg.GRPCPort > 65535 {
		return fmt.Errorf("grpc_port must be between 1 and 65535, got %d", cfg.GRPCPort)
	}
	if cfg.GRPCPort == cfg.HTTPPort {
		return fmt.Errorf("grpc_port and http_port must differ, both are %d", cfg.HTTPPort)
	}
	if cfg.CorrelatorHeader == "" {
		return fmt.Errorf("correlator_header must not be empty")
	}
	if cfg.MaxBodySize <= 0 {
		return fmt.Errorf("max_body_size must be positive, got %d", cfg.MaxBodySize)
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %v", cfg.ReadTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", cfg.ShutdownTimeout)
	}
	if cfg.ActionURL != "" {
		u, err := url.ParseRequestURI(cfg.ActionURL)
		if err != nil {
			return fmt.Errorf("action_url is not a valid URL: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("action_url must be an absolute http or https URL, got %q", cfg.ActionURL)
		}
	}
	if cfg.DBURL == "" {
		return fmt.Errorf("db.url must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Statements))
	for i, st := range cfg.Statements {
		if st.Name == "" {
			return fmt.Errorf("statements[%d]: name must not be empty", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("statements[%d]: duplicate name %q", i, st.Name)
		}
		seen[st.Name] = true
	}
	return nil
}
