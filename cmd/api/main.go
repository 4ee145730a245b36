package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"authgate.dev/internal/auth"
	"authgate.dev/internal/config"
	"authgate.dev/internal/healthcheck"
	"authgate.dev/internal/httpapi"
	"authgate.dev/internal/migrate"
	"authgate.dev/internal/obs"
	"authgate.dev/internal/store/pg"
	"authgate.dev/internal/store/sqlite"
	"authgate.dev/internal/store/sqlstore"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("AUTHGATE_CONFIG"), "Path to YAML config")
		probe      = flag.Bool("healthcheck", false, "Query the gRPC health endpoint of a running instance and exit")
	)
	flag.Parse()

	if *probe {
		if err := healthProbe(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		obs.Logger().Error("authgate_exit", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := obs.ConfigureLogger(os.Stdout, cfg.Log.Level)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, cfg.Telemetry.ServiceName, version, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	store, db, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	hasher, err := auth.NewHasher(cfg.Password.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(cfg.Token.Secret,
		auth.WithTokenIssuer(cfg.Token.Issuer),
		auth.WithTokenTTL(cfg.Token.TTL),
	)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(store, hasher, tokens,
		auth.WithDefaultRole(cfg.DefaultRole),
		auth.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{DB: db}
	api := httpapi.New(probe, version, svc, tokens,
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_listen", slog.String("addr", srv.Addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()

	var grpcSrv *httpapi.GRPCServer
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = httpapi.NewGRPCServer(probe, version)
		go grpcSrv.Watch(ctx, 10*time.Second)
		go func() {
			logger.Info("grpc_listen", slog.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err := <-errCh:
		logger.Error("server_failed", slog.String("error", err.Error()))
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// openStore selects the account store backend. db is nil for the memory driver.
func openStore(ctx context.Context, cfg config.Database) (auth.Store, *sql.DB, error) {
	var (
		store *sqlstore.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		return auth.NewMemoryStore(), nil, nil
	case config.DriverPostgres:
		store, err = pg.Open(cfg.DSN)
	case config.DriverSQLite:
		store, err = sqlite.Open(cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		mgr, err := migrate.NewManager(store.DB(), cfg.Driver)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		if err := mgr.Up(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		if err := mgr.Seed(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("seed: %w", err)
		}
	}
	return store, store.DB(), nil
}

// healthProbe is meant for container health checks against a local instance.
func healthProbe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.GRPC.Addr == "" {
		return errors.New("grpc endpoint disabled")
	}
	target := cfg.GRPC.Addr
	if strings.HasPrefix(target, ":") {
		target = "localhost" + target
	}
	client, err := healthcheck.Dial(target)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := healthcheck.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return client.Check(ctx, "authgate")
}
