package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/tapp/internal/adapters/http/api"
	"github.com/okian/tapp/internal/adapters/http/swagger"
	"github.com/okian/tapp/internal/adapters/repository"
	app "github.com/okian/tapp/internal/app"
	"github.com/okian/tapp/internal/config"
	"github.com/okian/tapp/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Runtime metrics are published by the dispatcher on our own registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "tapp exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.LogJSON {
		_ = logger.Init(logger.WithJSON(true))
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	backend, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	svc := app.New(serviceOptions(cfg, backend, log)...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("persistence", cfg.Persistence),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// stores bundles the persistence collaborators of the service.
type stores struct {
	assignments repository.AssignmentStore
	catalog     repository.Catalog
}

// openStores builds the configured backend. The returned func releases it.
func openStores(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	switch cfg.Persistence {
	case config.PersistencePostgres:
		pool, err := repository.NewPool(ctx, repository.PoolConfig{
			URL:      cfg.PostgresURL,
			MaxConns: cfg.PostgresMaxConns,
			MinConns: cfg.PostgresMinConns,
		})
		if err != nil {
			return stores{}, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := repository.NewPostgresStore(pool, repository.WithSessionID(cfg.SessionID))
		return stores{assignments: pg, catalog: pg}, pool.Close, nil

	default:
		opts := []repository.Option{repository.WithLatencyRange(cfg.MemoryLatency())}
		if cfg.CatalogFile != "" {
			seed, err := repository.LoadSeed(cfg.CatalogFile)
			if err != nil {
				return stores{}, nil, err
			}
			opts = append(opts, repository.WithSeed(seed))
		}
		mem, err := repository.NewMemoryStore(opts...)
		if err != nil {
			return stores{}, nil, fmt.Errorf("create memory store: %w", err)
		}
		return stores{assignments: mem, catalog: mem}, func() {}, nil
	}
}

func serviceOptions(cfg *config.Config, st stores, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithQueueSize(cfg.CommandQueueSize),
		app.WithInflightLimit(cfg.InflightLimit),
		app.WithFinalizeTimeout(cfg.FinalizeTimeout()),
		app.WithMaxImportBytes(cfg.MaxImportBytes),
		app.WithJournal(cfg.Journal),
		app.WithSyncOnStart(cfg.SyncOnStart),
		app.WithAssignmentStore(st.assignments),
		app.WithCatalog(st.catalog),
	}
}

func newRouter(ctx context.Context, svc *app.Service) http.Handler {
	r := chi.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc).Register(ctx, r)
	return r
}
