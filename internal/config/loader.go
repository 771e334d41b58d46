package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles Viper-based configuration loading.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with its own Viper instance, so concurrent
// loads never share state.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load reads configuration from the standard locations: defaults, then an
// optional config file (ABOARD_CONFIG_PATH, ./aboard.yaml or
// ./config/aboard.yaml), then ABOARD_* environment variables on top.
// A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	if path := os.Getenv("ABOARD_CONFIG_PATH"); path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		l.v.SetConfigName("aboard")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("./config")
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads configuration from an explicit file path, with
// environment overrides still applied on top. The file must exist.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

// MustLoad is Load with a panic on error, for program entry points.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix("ABOARD")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

// setDefaults registers every key with Viper. AutomaticEnv only resolves
// keys Viper already knows about, so each one is listed here even when the
// default is the zero value.
func (l *Loader) setDefaults() {
	def := DefaultConfig()

	l.v.SetDefault("server.addr", def.Server.Addr)
	l.v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	l.v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	l.v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)

	l.v.SetDefault("store.backend", def.Store.Backend)
	l.v.SetDefault("store.dsn", def.Store.DSN)

	l.v.SetDefault("queue.backend", def.Queue.Backend)
	l.v.SetDefault("queue.workers", def.Queue.Workers)
	l.v.SetDefault("queue.max_attempts", def.Queue.MaxAttempts)
	l.v.SetDefault("queue.backoff", def.Queue.Backoff)

	l.v.SetDefault("docsign.simulate", def.DocSign.Simulate)
	l.v.SetDefault("docsign.base_url", def.DocSign.BaseURL)
	l.v.SetDefault("docsign.webhook_base_url", def.DocSign.WebhookBaseURL)
	l.v.SetDefault("docsign.sender_email", def.DocSign.SenderEmail)
	l.v.SetDefault("docsign.sender_name", def.DocSign.SenderName)
	l.v.SetDefault("docsign.timeout", def.DocSign.Timeout)

	l.v.SetDefault("email.mode", def.Email.Mode)
	l.v.SetDefault("email.webhook_url", def.Email.WebhookURL)
	l.v.SetDefault("email.timeout", def.Email.Timeout)
	l.v.SetDefault("email.smtp.host", def.Email.SMTP.Host)
	l.v.SetDefault("email.smtp.port", def.Email.SMTP.Port)
	l.v.SetDefault("email.smtp.username", def.Email.SMTP.Username)
	l.v.SetDefault("email.smtp.password", def.Email.SMTP.Password)
	l.v.SetDefault("email.smtp.from", def.Email.SMTP.From)
	l.v.SetDefault("email.smtp.from_name", def.Email.SMTP.FromName)

	l.v.SetDefault("workflow.calendar_url", def.Workflow.CalendarURL)
	l.v.SetDefault("workflow.remind_after", def.Workflow.RemindAfter)
	l.v.SetDefault("workflow.retry.max_attempts", def.Workflow.Retry.MaxAttempts)
	l.v.SetDefault("workflow.retry.initial_backoff", def.Workflow.Retry.InitialBackoff)
	l.v.SetDefault("workflow.retry.max_backoff", def.Workflow.Retry.MaxBackoff)
	l.v.SetDefault("workflow.retry.multiplier", def.Workflow.Retry.Multiplier)
}
