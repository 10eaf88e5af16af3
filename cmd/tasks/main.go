package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mytask/internal/logger"
	"mytask/internal/server"
	"mytask/internal/service"
	db "mytask/repository/db"
	inmemory "mytask/repository/inmemory"
)

const shutdownTimeout = 30 * time.Second

// apiServer is the part of *server.TaskAPI main drives.
type apiServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	cfg, err := server.ReadConfig(os.Args[1:])
	if err != nil {
		slog.Error("failed to read configuration", "error", err)
		os.Exit(2)
	}
	if err := logger.Init(cfg.Logger()); err != nil {
		slog.Error("failed to initialise logger", "error", err)
		os.Exit(1)
	}
	log := logger.Get()
	log.Info("starting task service", "storage", cfg.Storage, "addr", cfg.ListenAddr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	os.Exit(run(cfg, log, initStores, sigChan))
}

type storeOpener func(ctx context.Context, cfg *server.Config, log *slog.Logger) (service.UserStore, service.TaskStore, func(), error)

// run returns the process exit code. The store is closed on every path
// once it has been opened.
func run(cfg *server.Config, log *slog.Logger, open storeOpener, sigChan <-chan os.Signal) int {
	users, tasks, closeStore, err := open(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialise storage", "error", err)
		return 1
	}
	defer closeStore()

	api := server.NewTaskAPI(users, tasks, cfg, log)
	if api == nil {
		log.Error("failed to initialise API")
		return 1
	}

	if err := serve(api, sigChan, log); err != nil {
		log.Error("server stopped with error", "error", err)
		return 1
	}
	log.Info("task service stopped")
	return 0
}

// initStores picks the backend named in cfg. An unreachable database falls
// back to process memory; a reachable one that cannot be migrated is fatal.
func initStores(ctx context.Context, cfg *server.Config, log *slog.Logger) (service.UserStore, service.TaskStore, func(), error) {
	if cfg.Storage != server.StoragePostgres {
		mem := inmemory.NewStorage()
		return mem, mem, func() {}, nil
	}

	pg, err := db.NewStorage(ctx, cfg.DBStr, log)
	if err != nil {
		log.Warn("database unavailable, falling back to in-memory storage", "error", err)
		mem := inmemory.NewStorage()
		return mem, mem, func() {}, nil
	}

	if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
		pg.Close()
		return nil, nil, nil, err
	}
	log.Info("migrations applied")

	return pg, pg, pg.Close, nil
}

// serve runs api until it fails or a signal arrives, then shuts it down
// gracefully.
func serve(api apiServer, sigChan <-chan os.Signal, log *slog.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- api.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := api.Shutdown(ctx); err != nil {
			return err
		}
		log.Info("graceful shutdown complete")
		return nil

	case err := <-serverErr:
		return err
	}
}
