// Package config provides configuration loading for the onboarding service.
//
// Configuration is loaded using Viper, supporting YAML config files and
// environment variable overrides. The defaults work out of the box: memory
// stores, an in-process task queue, simulated document signing and logged
// email.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (ABOARD_ prefix, e.g. ABOARD_SERVER_ADDR)
//  2. Config file specified by ABOARD_CONFIG_PATH
//  3. ./aboard.yaml or ./config/aboard.yaml
//  4. [DefaultConfig] defaults
package config

import (
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// Config is the root configuration container.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Queue    QueueConfig    `mapstructure:"queue"`
	DocSign  DocSignConfig  `mapstructure:"docsign"`
	Email    EmailConfig    `mapstructure:"email"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects where subjects and events are persisted.
type StoreConfig struct {
	// Backend is one of: memory, sqlite, postgres, redis.
	Backend string `mapstructure:"backend"`

	// DSN is the backend connection string. Ignored for memory; a file
	// path or file: URI for sqlite; a connection URL for postgres and
	// redis.
	DSN string `mapstructure:"dsn"`
}

// QueueConfig selects the task queue that decouples HTTP accepts from
// pipeline work.
type QueueConfig struct {
	// Backend is one of: memory, sqlite, postgres, redis. Empty disables
	// the queue entirely and the engine advances inline, which is the
	// simplest single-process setup.
	Backend string `mapstructure:"backend"`

	// Workers is the number of concurrent task processors.
	Workers int `mapstructure:"workers"`

	// MaxAttempts and Backoff control task-level redelivery when a
	// handler fails with an I/O error.
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// DocSignConfig holds the e-signature service client settings.
type DocSignConfig struct {
	// Simulate skips the external signing service and generates tracking
	// ids locally. The pipeline behaves identically either way.
	Simulate bool `mapstructure:"simulate"`

	// BaseURL is the signing service root, without a trailing slash.
	BaseURL string `mapstructure:"base_url"`

	// WebhookBaseURL is where the signing service should deliver document
	// and quiz status callbacks.
	WebhookBaseURL string `mapstructure:"webhook_base_url"`

	SenderEmail string `mapstructure:"sender_email"`
	SenderName  string `mapstructure:"sender_name"`

	// Timeout bounds each individual send request.
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmailConfig selects how onboarding notifications go out.
type EmailConfig struct {
	// Mode is one of: log, webhook, smtp.
	Mode string `mapstructure:"mode"`

	// WebhookURL receives notification payloads in webhook mode.
	WebhookURL string `mapstructure:"webhook_url"`

	// Timeout bounds one webhook delivery attempt.
	Timeout time.Duration `mapstructure:"timeout"`

	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds the SMTP connection settings for smtp mode.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// WorkflowConfig tunes the pipeline itself.
type WorkflowConfig struct {
	// CalendarURL is the booking link sent with the call-schedule step.
	CalendarURL string `mapstructure:"calendar_url"`

	// RemindAfter schedules a quiz reminder this long after a subject
	// parks at a quiz gate. Only effective with a queue.
	RemindAfter time.Duration `mapstructure:"remind_after"`

	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig is the step retry budget for action steps.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
}

// Policy converts the retry section into the engine's policy type.
func (r RetryConfig) Policy() api.RetryPolicy {
	return api.RetryPolicy{
		MaxAttempts:       r.MaxAttempts,
		InitialBackoff:    r.InitialBackoff,
		MaxBackoff:        r.MaxBackoff,
		BackoffMultiplier: r.Multiplier,
	}
}

// DefaultConfig returns a Config with defaults that run without any
// external services.
func DefaultConfig() *Config {
	retry := api.DefaultRetryPolicy()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Queue: QueueConfig{
			Backend:     "memory",
			Workers:     4,
			MaxAttempts: 3,
			Backoff:     5 * time.Second,
		},
		DocSign: DocSignConfig{
			Simulate:    true,
			BaseURL:     "https://doc-esign.onrender.com",
			SenderEmail: "hr@company.com",
			SenderName:  "HR Department",
			Timeout:     30 * time.Second,
		},
		Email: EmailConfig{
			Mode:    "log",
			Timeout: 30 * time.Second,
			SMTP: SMTPConfig{
				Port:     587,
				FromName: "HR Onboarding",
			},
		},
		Workflow: WorkflowConfig{
			CalendarURL: "https://calendly.com/hr-onboarding/30min",
			RemindAfter: 24 * time.Hour,
			Retry: RetryConfig{
				MaxAttempts:    retry.MaxAttempts,
				InitialBackoff: retry.InitialBackoff,
				MaxBackoff:     retry.MaxBackoff,
				Multiplier:     retry.BackoffMultiplier,
			},
		},
	}
}
