package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-postboard/internal/config"
	"backend-postboard/internal/db"
	"backend-postboard/internal/kvstore"
	"backend-postboard/internal/observability"
	"backend-postboard/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	observability.NewLogger(os.Stdout, cfg.LogLevel)

	var pg *pgxpool.Pool
	if cfg.StoreBackend == config.BackendPostgres {
		var err error
		pg, err = deps.connectPostgres(cfg)
		if err != nil {
			slog.Error("postgres connection failed", "error", err)
		}
	}

	// redis also carries the event fan-out, so it is dialed for every backend
	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	store, err := openStore(ctx, cfg, pg, rdb)
	if err != nil {
		return err
	}
	srv := server.NewServer(cfg, store, rdb)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	_ = srv.Close()
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}

// openStore picks the blob store named by STORE_BACKEND. When that backend
// has no live connection the process keeps running on memory.
func openStore(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client) (kvstore.Store, error) {
	switch {
	case cfg.StoreBackend == config.BackendPostgres && pg != nil:
		store := kvstore.NewPostgresStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return kvstore.Instrument(store, config.BackendPostgres), nil
	case cfg.StoreBackend == config.BackendRedis && rdb != nil:
		return kvstore.Instrument(kvstore.NewRedisStore(rdb), config.BackendRedis), nil
	}
	if cfg.StoreBackend != "" && cfg.StoreBackend != config.BackendMemory {
		slog.Warn("store backend unavailable, using memory", "backend", cfg.StoreBackend)
	}
	return kvstore.Instrument(kvstore.NewMemoryStore(), config.BackendMemory), nil
}
