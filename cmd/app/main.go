package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"
	trackingservice "bus-tracker/internal/tracking-service"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: app <command> [flags]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  tracking-service   run the live bus location service")
}

func main() {
	trackingCmd := flag.NewFlagSet("tracking-service", flag.ExitOnError)
	port := trackingCmd.String("port", "", "override TRACKING_SERVICE_PORT")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "tracking-service":
		_ = trackingCmd.Parse(os.Args[2:])

		bootLog, err := mylogger.New(mylogger.LevelInfo)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg, err := config.New(bootLog)
		if err != nil {
			bootLog.Action("config_failed").Error("Failed to load configuration", err)
			os.Exit(1)
		}
		if *port != "" {
			cfg.Srv.TrackingServicePort = *port
		}

		mylog, err := mylogger.New(cfg.Log.Level)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		mylog = mylog.With("service", "tracking-service")

		if err := trackingservice.Execute(context.Background(), mylog, cfg); err != nil {
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(1)
	}
}
