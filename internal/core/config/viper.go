package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/solatis/cepgate/internal/types"
)

// flagKeys maps persistent CLI flags to config keys.
var flagKeys = map[string]string{
	"db-url":     "db.url",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*ServiceConfig, error) {
	v := viper.New()

	d := DefaultServiceConfig()
	v.SetDefault("service.http_host", d.HTTPHost)
	v.SetDefault("service.http_port", d.HTTPPort)
	v.SetDefault("service.grpc_port", d.GRPCPort)
	v.SetDefault("service.correlator_header", d.CorrelatorHeader)
	v.SetDefault("service.action_url", d.ActionURL)
	v.SetDefault("service.max_body_size", d.MaxBodySize)
	v.SetDefault("service.read_timeout", d.ReadTimeout.String())
	v.SetDefault("service.shutdown_timeout", d.ShutdownTimeout.String())
	v.SetDefault("db.url", d.DBURL)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Checked before env and flags are bound so only file values count
		if err := validateNoSecretsInConfig(v); err != nil {
			return nil, err
		}
	}

	// Bind environment variables with CG_ prefix
	v.SetEnvPrefix("CG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flag, key := range flagKeys {
			f := flags.Lookup(flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}

	cfg := &ServiceConfig{
		HTTPHost:         v.GetString("service.http_host"),
		HTTPPort:         v.GetInt("service.http_port"),
		GRPCPort:         v.GetInt("service.grpc_port"),
		CorrelatorHeader: v.GetString("service.correlator_header"),
		ActionURL:        v.GetString("service.action_url"),
		MaxBodySize:      v.GetInt64("service.max_body_size"),
		ReadTimeout:      v.GetDuration("service.read_timeout"),
		ShutdownTimeout:  v.GetDuration("service.shutdown_timeout"),
		DBURL:            v.GetString("db.url"),
		LogLevel:         v.GetString("log.level"),
		LogFormat:        v.GetString("log.format"),
	}

	if err := v.UnmarshalKey("statements", &cfg.Statements); err != nil {
		return nil, fmt.Errorf("invalid statements: %w", err)
	}
	for i := range cfg.Statements {
		if cfg.Statements[i].EventType == "" {
			cfg.Statements[i].EventType = types.EventTypeName
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// A database URL carrying a password must come from CG_DB_URL or --db-url.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if !v.InConfig("db.url") {
		return nil
	}
	u, err := url.Parse(v.GetString("db.url"))
	if err != nil {
		return fmt.Errorf("invalid db.url in config file: %w", err)
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database passwords not allowed in config files (use CG_DB_URL environment variable)")
	}
	return nil
}
