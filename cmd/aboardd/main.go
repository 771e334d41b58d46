// Command aboardd serves the employee onboarding workflow over HTTP.
//
// The daemon wires a storage backend, an optional task queue with a
// worker pool, a document-signing client and a mailer into the workflow
// engine, then exposes the REST API from internal/httpapi. All knobs come
// from internal/config: an aboard.yaml file plus ABOARD_* environment
// variables. With no configuration at all it runs fully in memory with
// simulated document signing, which is enough to exercise the API
// locally.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/petrijr/aboard/internal/config"
	"github.com/petrijr/aboard/internal/docsign"
	"github.com/petrijr/aboard/internal/engine"
	"github.com/petrijr/aboard/internal/httpapi"
	"github.com/petrijr/aboard/internal/mailer"
	"github.com/petrijr/aboard/internal/metrics"
	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/internal/taskqueue"
	"github.com/petrijr/aboard/pkg/api"
	"github.com/petrijr/aboard/pkg/worker"
)

// redisPrefix namespaces every key the daemon writes, matching the
// prefix used by engine.NewRedisEngine.
const redisPrefix = "aboard:"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aboardd:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "aboardd",
		Short: "Employee onboarding workflow daemon",
		Long: `aboardd drives new hires through the document-and-quiz onboarding
pipeline and exposes it as a REST API.

Configuration is looked up in aboard.yaml (working directory or
./config), in the file named by --config or ABOARD_CONFIG_PATH, and in
ABOARD_* environment variables, later sources winning. Without any of
these the daemon keeps everything in process memory and simulates the
signing provider.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file (overrides discovery)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.NewLoader().LoadFromFile(path)
	}
	return config.NewLoader().Load()
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	st, err := openStorage(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	queue, err := openQueue(cfg.Queue, st)
	if err != nil {
		return err
	}

	retry := cfg.Workflow.Retry.Policy()
	m, err := buildMailer(cfg.Email, logger, retry)
	if err != nil {
		return err
	}

	promObs := metrics.NewPromObserver()

	eng := engine.NewEngineWithConfig(engine.Config{
		Persistence: st.persist,
		Queue:       queue,
		Signer:      buildSigner(cfg.DocSign, retry),
		Mailer:      m,
		Observer:    api.NewCompositeObserver(api.NewLoggingObserver(logger), promObs),
		Logger:      logger,
		Retry:       retry,
		CalendarURL: cfg.Workflow.CalendarURL,
		RemindAfter: cfg.Workflow.RemindAfter,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Subjects stranded mid-step by a previous crash go back to the
	// queue (or advance inline) before traffic is accepted.
	if n, err := eng.RecoverStale(ctx); err != nil {
		return fmt.Errorf("recover stale: %w", err)
	} else if n > 0 {
		logger.Info("recovered_stale_subjects", "count", n)
	}

	var wg sync.WaitGroup
	if queue != nil {
		w := worker.NewWithConfig(eng, queue, worker.Config{
			MaxAttempts: cfg.Queue.MaxAttempts,
			Backoff:     cfg.Queue.Backoff,
		})
		workers := cfg.Queue.Workers
		if workers <= 0 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = w.Run(ctx)
			}()
		}
		logger.Info("worker_pool_started", "workers", workers, "queue", cfg.Queue.Backend)
	}

	srv := httpapi.New(httpapi.Config{
		Engine:  eng,
		Store:   st.persist,
		Logger:  logger,
		Metrics: promObs.Handler(),
	})
	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", cfg.Server.Addr, "store", st.backend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err)
	}
	wg.Wait()
	return nil
}

// storage bundles the opened persistence layer with the raw connection
// handles, so a queue configured on the same backend can share them.
type storage struct {
	backend string
	persist persistence.Persistence

	db    *sql.DB
	redis *redis.Client
}

func (s *storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

func openStorage(cfg config.StoreConfig) (*storage, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		return &storage{
			backend: backend,
			persist: persistence.Persistence{
				Subjects: persistence.NewInMemoryStore(),
				Events:   persistence.NewInMemoryEventStore(),
			},
		}, nil

	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "aboard.db"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		subjects, err := persistence.NewSQLiteSubjectStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		events, err := persistence.NewSQLiteEventStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			backend: backend,
			persist: persistence.Persistence{Subjects: subjects, Events: events},
			db:      db,
		}, nil

	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("store backend postgres requires store.dsn")
		}
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		subjects, err := persistence.NewPostgresSubjectStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		events, err := persistence.NewPostgresEventStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			backend: backend,
			persist: persistence.Persistence{Subjects: subjects, Events: events},
			db:      db,
		}, nil

	case "redis":
		if cfg.DSN == "" {
			return nil, errors.New("store backend redis requires store.dsn")
		}
		opt, err := redis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse redis dsn: %w", err)
		}
		client := redis.NewClient(opt)
		return &storage{
			backend: backend,
			persist: persistence.Persistence{
				Subjects: persistence.NewRedisSubjectStore(client, redisPrefix),
				Events:   persistence.NewRedisEventStore(client, redisPrefix),
			},
			redis: client,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openQueue builds the task queue named by the config. The durable
// backends piggyback on the store connection, so they require the store
// to run on the same backend. An empty backend disables the queue and
// the engine advances workflows inline.
func openQueue(cfg config.QueueConfig, st *storage) (taskqueue.Queue, error) {
	switch cfg.Backend {
	case "":
		return nil, nil

	case "memory":
		return taskqueue.NewInMemoryQueue(0), nil

	case "sqlite":
		if st.backend != "sqlite" {
			return nil, fmt.Errorf("queue backend sqlite shares the store connection and requires store.backend sqlite, got %q", st.backend)
		}
		return taskqueue.NewSQLiteQueue(st.db)

	case "postgres":
		if st.backend != "postgres" {
			return nil, fmt.Errorf("queue backend postgres shares the store connection and requires store.backend postgres, got %q", st.backend)
		}
		return taskqueue.NewPostgresQueue(st.db)

	case "redis":
		if st.backend != "redis" {
			return nil, fmt.Errorf("queue backend redis shares the store connection and requires store.backend redis, got %q", st.backend)
		}
		return taskqueue.NewRedisQueue(st.redis, redisPrefix), nil

	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func buildSigner(cfg config.DocSignConfig, retry api.RetryPolicy) docsign.Client {
	if cfg.Simulate {
		return &docsign.Simulator{}
	}
	return docsign.NewHTTPClient(docsign.Config{
		BaseURL:        cfg.BaseURL,
		WebhookBaseURL: cfg.WebhookBaseURL,
		SenderEmail:    cfg.SenderEmail,
		SenderName:     cfg.SenderName,
		Timeout:        cfg.Timeout,
		Retry:          retry,
	})
}

func buildMailer(cfg config.EmailConfig, logger *slog.Logger, retry api.RetryPolicy) (mailer.Mailer, error) {
	switch cfg.Mode {
	case "", "log":
		return mailer.NewLogMailer(logger), nil

	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, errors.New("email mode webhook requires email.webhook_url")
		}
		return mailer.NewWebhookMailer(cfg.WebhookURL, cfg.Timeout, retry), nil

	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, errors.New("email mode smtp requires email.smtp.host")
		}
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		}), nil

	default:
		return nil, fmt.Errorf("unknown email mode %q", cfg.Mode)
	}
}
