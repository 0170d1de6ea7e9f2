package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
	"hrms.org/internal/config"
	"hrms.org/internal/hr"
	"hrms.org/internal/httpapi"
	"hrms.org/internal/obs"
	"hrms.org/internal/session"
	"hrms.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults to $HRMS_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "hrms-api: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := obs.NewLogger(cfg.Environment, cfg.Log.Level, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := obs.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Insecure, cfg.Telemetry.ServiceName, logger)

	if cfg.Postgres.DSN == "" {
		return errors.New("postgres dsn is required (HRMS_PG_DSN)")
	}
	store, err := pg.Open(cfg.Postgres.DSN, pg.PoolOptions{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer store.Close()

	sessions, err := session.Connect(ctx, session.Options{
		Addr:          cfg.Redis.Addr,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MaxRetries:    cfg.Redis.MaxRetries,
		RetryInterval: cfg.Redis.RetryInterval,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer sessions.Close()
	logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))

	signer, err := auth.NewTokenSigner(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
	)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(store, sessions, signer,
		auth.WithLogger(logger.Named("auth")),
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	if err != nil {
		return err
	}
	validator, err := auth.NewValidator(signer, sessions)
	if err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{Postgres: store, Redis: sessions}
	api := httpapi.New(httpapi.Deps{
		Validator:      validator,
		Auth:           authSvc,
		HR:             hr.NewService(store, auth.NewPasswordHasher(cfg.Auth.BcryptCost), logger.Named("hr")),
		Audit:          audit.NewSink(store, logger.Named("audit")),
		AuditLog:       store,
		Ready:          probe,
		Logger:         logger.Named("http"),
		Production:     cfg.IsProduction(),
		Version:        version,
		LoginBurst:     cfg.RateLimit.LoginBurst,
		LoginPerSecond: cfg.RateLimit.LoginPerSecond,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           otelhttp.NewHandler(api.Handler(), cfg.Telemetry.ServiceName),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	health := httpapi.NewHealthServer(probe, logger.Named("grpc"))
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go health.Run(ctx, 5*time.Second)

	errc := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	if terr := shutdownTracing(shutdownCtx); terr != nil {
		logger.Warn("tracing shutdown", zap.Error(terr))
	}
	logger.Info("stopped")
	return err
}
