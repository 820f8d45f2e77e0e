package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/config"
	"github.com/example/desk-booking/internal/events"
	httptransport "github.com/example/desk-booking/internal/http"
	"github.com/example/desk-booking/internal/locking"
	"github.com/example/desk-booking/internal/logging"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/persistence/postgres"
	"github.com/example/desk-booking/internal/persistence/sqlite"
	"github.com/example/desk-booking/internal/persistence/sqlite/migration"
	"github.com/example/desk-booking/internal/scheduler"
)

const (
	eventBuffer       = 256
	eventTimeout      = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	dependencyTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	if err := run(ctx, cfg, logger, nil); err != nil {
		logger.Error("desk booking service stopped with error", "error", err)
		os.Exit(1)
	}
}

// run serves the API until ctx is canceled. When ready is non-nil it receives
// the bound listen address once the server accepts connections.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger, ready chan<- string) error {
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to release resources", "error", cerr)
		}
	}()

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}

	server := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	app.reconciler.Start(ctx)
	defer app.reconciler.Stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	logger.Info("desk booking API listening", "addr", listener.Addr().String(), "store", cfg.Store)
	if ready != nil {
		ready <- listener.Addr().String()
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("desk booking API stopped")
	return nil
}

type store interface {
	persistence.Store
	Migrate(ctx context.Context) error
	Close() error
}

type app struct {
	store      store
	sink       events.Sink
	locker     locking.Locker
	services   services
	reconciler *application.Reconciler
	handler    http.Handler
	closers    []io.Closer
}

type services struct {
	bookings *application.BookingService
	catalog  *application.CatalogService
	reports  *application.ReportService
	auth     *application.AuthService
}

// newApp opens every dependency named by cfg and wires the services and the
// router. On error everything opened so far is closed again.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.store, err = openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store)

	if a.locker, err = a.openLocker(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if a.sink, err = a.openSinks(cfg, logger); err != nil {
		return nil, err
	}

	tokens, err := application.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL, time.Now)
	if err != nil {
		return nil, err
	}

	reports := application.NewReportServiceWithLogger(a.store, cfg.ReportTTL, time.Now, logger)
	a.services = services{
		bookings: application.NewBookingService(application.BookingServiceDeps{
			Bookings:    a.store,
			Catalog:     a.store,
			Audit:       a.store,
			Sink:        a.sink,
			Locker:      a.locker,
			Window:      scheduler.CheckInWindow{Lead: cfg.CheckInEarly, Grace: cfg.NoShowGrace},
			Reports:     reports,
			IDGenerator: uuid.NewString,
			Now:         time.Now,
			Logger:      logger,
		}),
		catalog: application.NewCatalogService(application.CatalogServiceDeps{
			Catalog:  a.store,
			Audit:    a.store,
			Sink:     a.sink,
			Location: cfg.Timezone,
			Now:      time.Now,
			Logger:   logger,
		}),
		reports: reports,
		auth: application.NewAuthService(application.AuthServiceDeps{
			Users:  a.store,
			Audit:  a.store,
			Sink:   a.sink,
			Tokens: tokens,
			Now:    time.Now,
			Logger: logger,
		}),
	}
	a.reconciler = application.NewReconciler(application.ReconcilerDeps{
		Bookings: a.store,
		Audit:    a.store,
		Sink:     a.sink,
		Interval: cfg.SweepInterval,
		Grace:    cfg.NoShowGrace,
		Now:      time.Now,
		Logger:   logger,
	})

	if cfg.BootstrapAdminEmail != "" {
		created, err := a.services.auth.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			return nil, fmt.Errorf("bootstrap administrator: %w", err)
		}
		if created {
			logger.Info("bootstrap administrator created", "email", cfg.BootstrapAdminEmail)
		}
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(a.services.auth, logger),
		Catalog:        httptransport.NewCatalogHandler(a.services.catalog, logger),
		Bookings:       httptransport.NewBookingHandler(a.services.bookings, a.services.reports, cfg.Timezone, logger),
		Reports:        httptransport.NewReportHandler(a.services.reports, logger),
		Admin:          httptransport.NewAdminHandler(a.reconciler, a.store, a.services.reports, logger),
		Authenticator:  a.services.auth,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})
	return a, nil
}

// Close releases dependencies in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	var (
		s   store
		err error
	)
	switch cfg.Store {
	case config.StorePostgres:
		s, err = postgres.Open(ctx, postgres.DefaultConfig(cfg.PostgresDSN), logger)
	default:
		s, err = sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Store, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate %s storage: %w", cfg.Store, err)
	}
	return s, nil
}

// openLocker shares desk locks through Redis when configured and falls back to
// an in-process lock otherwise.
func (a *app) openLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (locking.Locker, error) {
	if !cfg.RedisEnabled() {
		return locking.NewKeyedMutex(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, client)

	pingCtx, cancel := context.WithTimeout(ctx, dependencyTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("desk locks shared through redis", "addr", cfg.RedisAddr)
	return locking.NewRedisLocker(client, locking.RedisConfig{TTL: cfg.LockTTL}, logger), nil
}

// openSinks always logs events and forwards them to every configured broker
// through a buffered queue.
func (a *app) openSinks(cfg config.Config, logger *slog.Logger) (events.Sink, error) {
	sinks := events.Multi{events.NewLogSink(logger)}
	for _, name := range cfg.EventSinks {
		var (
			next events.Sink
			err  error
		)
		switch name {
		case config.SinkAMQP:
			next, err = events.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		case config.SinkKafka:
			next, err = events.NewKafkaSink(events.DefaultKafkaConfig(cfg.KafkaBrokers, cfg.KafkaTopic))
		default:
			err = fmt.Errorf("unknown event sink %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s event sink: %w", name, err)
		}
		async := events.NewAsync(next, eventBuffer, eventTimeout, logger.With("sink", name))
		a.closers = append(a.closers, async)
		sinks = append(sinks, async)
	}
	return sinks, nil
}
