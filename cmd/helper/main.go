package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/services"
)

// Simulates one bus driver: toggles tracking on, streams positions over the
// websocket and toggles off on exit.
func main() {
	cfg := Config{}
	flag.StringVar(&cfg.BaseURL, "base", DefaultBaseURL, "tracking service base URL")
	flag.StringVar(&cfg.DriverID, "driver_id", "", "driver user id (used to mint a token with -secret)")
	flag.StringVar(&cfg.Token, "token", "", "driver JWT")
	flag.StringVar(&cfg.Secret, "secret", os.Getenv("JWT_SECRET"), "JWT secret to mint a driver token")
	flag.Float64Var(&cfg.Start.Latitude, "lat", 43.236, "start latitude")
	flag.Float64Var(&cfg.Start.Longitude, "lng", 76.886, "start longitude")
	flag.Float64Var(&cfg.SpeedMps, "speed", 10, "speed in meters per second")
	flag.Float64Var(&cfg.HeadingDegrees, "heading", 45, "heading in degrees")
	flag.DurationVar(&cfg.UpdateInterval, "interval", DefaultUpdateInterval, "time between samples")
	flag.IntVar(&cfg.Samples, "samples", 0, "stop after this many samples, 0 runs until interrupted")
	level := flag.String("log", mylogger.LevelInfo, "log level")
	flag.Parse()

	appLogger, err := mylogger.New(*level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger = appLogger.With("driver_id", cfg.DriverID)

	if cfg.Token == "" {
		if cfg.DriverID == "" || cfg.Secret == "" {
			log.Fatal("either -token or both -driver_id and -secret are required")
		}
		cfg.Token, err = services.NewAuthService(cfg.Secret).IssueToken(cfg.DriverID, model.RoleDriver, 12*time.Hour)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Action("simulator_started").Info("Bus driver simulator starting up", "base", cfg.BaseURL)
	if err := NewDriverService(ctx, cfg, appLogger).Run(); err != nil {
		appLogger.Action("simulator_failed").Error("Simulator stopped", err)
		os.Exit(1)
	}
	appLogger.Action("simulator_stopped").Info("Simulator finished")
}
