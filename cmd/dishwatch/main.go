package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/config"
	"github.com/talkincode/dishwatch/internal/app"
)

var (
	configFile = flag.String("c", "/etc/dishwatch.yml", "config file path")
	debug      = flag.Bool("d", false, "enable debug logging")
	initDb     = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	showVer    = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("dishwatch %s\n", version)
		return
	}

	cfg := config.LoadConfig(*configFile)
	if *debug {
		cfg.System.Debug = true
		cfg.Logger.Mode = "development"
	}
	if err := os.MkdirAll(cfg.System.Workdir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "cannot create workdir %s: %v\n", cfg.System.Workdir, err)
		os.Exit(1)
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initDb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	application.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.WebServer().Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zap.S().Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			zap.S().Errorf("web server error: %v", err)
		}
	}
}
