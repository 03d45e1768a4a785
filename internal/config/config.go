// Package config provides plugin host configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/record-plugins/pkg/commsutil"
	"github.com/morezero/record-plugins/pkg/plugin"
	"github.com/morezero/record-plugins/pkg/semver"
)

const logPrefix = "config:LoadConfig"

// Config holds plugin host configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"plugin-host"`

	// Subject overrides (empty = derive from registration name and major version)
	PluginSubject         string `envconfig:"PLUGIN_SUBJECT"`
	ExecutionEventSubject string `envconfig:"PLUGIN_EXECUTION_EVENT_SUBJECT"`

	RequestTimeout time.Duration `envconfig:"PLUGIN_REQUEST_TIMEOUT" default:"2m"`

	// Registration and plugin construction
	RegistrationFile string `envconfig:"PLUGIN_REGISTRATION_FILE"`
	UnsecureConfig   string `envconfig:"PLUGIN_UNSECURE_CONFIG"`
	SecureConfig     string `envconfig:"PLUGIN_SECURE_CONFIG"`
	VerboseTrace     bool   `envconfig:"PLUGIN_VERBOSE_TRACE" default:"false"`
	StackTraces      bool   `envconfig:"PLUGIN_STACK_TRACES" default:"true"`

	// Database (optional for serve: empty disables trace persistence)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return &c, nil
}

// ValidateForServe checks required config when running the plugin host.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - PLUGIN_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%s - HTTP_PORT %d out of range", logPrefix, c.HTTPPort)
	}
	if c.RunMigrations && c.DatabaseURL == "" {
		return fmt.Errorf("%s - RUN_MIGRATIONS requires DATABASE_URL", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear-trace).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// TraceEnabled reports whether invocation traces are persisted.
func (c *Config) TraceEnabled() bool {
	return c.DatabaseURL != ""
}

// PluginConfiguration returns the configuration strings handed to the plugin.
func (c *Config) PluginConfiguration() plugin.Configuration {
	return plugin.NewConfiguration(c.UnsecureConfig, c.SecureConfig)
}

// PluginOptions returns the plugin options selected by the environment.
func (c *Config) PluginOptions() []plugin.Option {
	return []plugin.Option{
		plugin.WithVerboseTrace(c.VerboseTrace),
		plugin.WithStackTraces(c.StackTraces),
	}
}

// Subject returns PLUGIN_SUBJECT, or the subject derived from the plugin name and version.
func (c *Config) Subject(pluginName, version string) (string, error) {
	if c.PluginSubject != "" {
		return c.PluginSubject, nil
	}
	major := 1
	if version != "" {
		m, err := semver.Major(version)
		if err != nil {
			return "", fmt.Errorf("%s - cannot derive subject: %w", logPrefix, err)
		}
		major = m
	}
	return commsutil.BuildPluginSubject(pluginName, major), nil
}
