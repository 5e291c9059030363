package trackingservice

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/adapters/driven/bm"
	"bus-tracker/internal/tracking-service/adapters/driven/db"
	"bus-tracker/internal/tracking-service/adapters/driven/fleet"
	"bus-tracker/internal/tracking-service/adapters/driven/metrics"
	redisadapter "bus-tracker/internal/tracking-service/adapters/driven/redis"
	"bus-tracker/internal/tracking-service/adapters/driver/myhttp"
	"bus-tracker/internal/tracking-service/adapters/driver/myhttp/handlers"
	"bus-tracker/internal/tracking-service/adapters/driver/myhttp/middleware"
	"bus-tracker/internal/tracking-service/core/ports/driven"
	"bus-tracker/internal/tracking-service/core/services"

	"golang.org/x/sync/errgroup"
)

// Execute builds the service from cfg and runs it until a shutdown signal
// arrives or a component fails.
func Execute(ctx context.Context, mylog mylogger.Logger, cfg *config.Config) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.ConnectDB(newCtx, cfg.DB, mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	defer database.Close()
	mylog.Action("db_connected").Info("Successful database connection")

	repo := db.New(database)
	if err := repo.HistoryRepository.Migrate(newCtx); err != nil {
		mylog.Action("db_migration_failed").Error("Failed to prepare history table", err)
		return err
	}

	checks := []handlers.HealthCheck{{Name: "postgres", Check: database.IsAlive}}

	var history driven.HistoryStore = repo.HistoryRepository
	if cfg.History.Backend == "redis" {
		cli, err := redisadapter.Connect(newCtx, cfg.Redis)
		if err != nil {
			mylog.Action("redis_connection_failed").Error("Failed to connect to redis", err)
			return err
		}
		defer cli.Close()
		history = redisadapter.NewHistoryStream(cli)
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return cli.Ping(ctx).Err()
		}})
		mylog.Action("redis_connected").Info("History is kept in redis streams")
	}

	var events driven.LocationEventPublisher
	if cfg.RabbitMq.Enabled {
		broker, err := bm.New(newCtx, cfg.RabbitMq, mylog)
		if err != nil {
			mylog.Action("rabbitmq_connection_failed").Error("Failed to connect to rabbitmq", err)
			return err
		}
		defer broker.Close()
		events = bm.NewPublisher(broker, mylog)
		checks = append(checks, handlers.HealthCheck{Name: "rabbitmq", Check: func(context.Context) error {
			if !broker.IsAlive() {
				return bm.ErrBrokerClosed
			}
			return nil
		}})
	}

	directory := fleet.NewDirectory(repo.FleetRepository, mylog.With("component", "fleet"))
	if err := directory.Refresh(newCtx); err != nil {
		mylog.Action("fleet_load_failed").Error("Failed to load fleet records", err)
		return err
	}

	m := metrics.New()
	svc := services.New(cfg, services.Deps{
		History: history,
		Events:  events,
		Fleet:   directory,
		Metrics: m,
	}, mylog)
	svc.TrackingService.Start()

	h := handlers.New(svc.AuthService, svc.TrackingService, checks, cfg.Session.SendBuffer, mylog)
	router := myhttp.Router(h, middleware.NewAuthMiddleware(svc.AuthService), m.Handler())
	server := myhttp.NewServer(cfg.Srv, router, mylog)

	g, gctx := errgroup.WithContext(newCtx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return directory.Run(gctx, cfg.Fleet.RefreshInterval) })
	g.Go(func() error { return svc.TrackingService.Liveness().Run(gctx) })

	runErr := g.Wait()
	if runErr != nil {
		mylog.Action("tracking_service_failed").Error("Service failed unexpectedly", runErr)
	} else {
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Srv.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, myhttp.ErrServerClosed) {
		errs = append(errs, err)
	}
	if err := svc.TrackingService.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracking shutdown: %w", err))
	}
	if runErr != nil {
		errs = append(errs, runErr)
	}
	return errors.Join(errs...)
}
