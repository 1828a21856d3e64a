package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eringen/inkpost"
	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/store"
)

// version is set at build time via ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := "serve"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "migrate":
		if err := runMigrate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("inkpost %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := inkpost.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	app := inkpost.New(cfg, inkpost.WithLogger(log))
	if err := app.Setup(ctx); err != nil {
		return err
	}
	defer app.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err.Error())
		return err
	}
	log.Info("Server stopped")
	return nil
}

// runMigrate applies pending schema migrations and exits.
func runMigrate() error {
	cfg, err := inkpost.LoadConfig()
	if err != nil {
		return err
	}
	path := cfg.Database.Path
	if path == "" {
		path = "data/blog.db"
	}
	s, err := store.New(path)
	if err != nil {
		return err
	}
	return s.Close()
}

func printUsage() {
	fmt.Println(`inkpost - A blogging API built with Go and Echo

Usage:
  inkpost [command]

Commands:
  serve         Run the HTTP server (default)
  migrate       Apply database migrations and exit
  version       Print the inkpost version
  help          Show this help message

Environment:
  JWT_SECRET         Session signing key (required)
  HTTP_ADDR          Listen address (default :3000)
  DATABASE_PATH      SQLite file (default data/blog.db)
  UPLOADS_BACKEND    local or minio (default local)
  UPLOADS_DIR        Local upload directory (default uploads)`)
}
