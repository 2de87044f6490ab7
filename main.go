// This is the main entry point of the blog application.
// It loads configuration, opens the storage backend, wires services and handlers
// (controllers), and runs one of three commands: the HTTP server with its expiry sweeper,
// the migrations, or a single sweep.
//
// Analogy to Nest.js: `serve` plays the role of `main.ts` bootstrapping the application;
// `migrate` and `sweep` are what you would otherwise write as standalone CLI scripts.
// @title Blog API
// @version 1.0
// @description Posts with tags and comments. Posts expire 24 hours after creation.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/user/blog-go/config"
	"github.com/user/blog-go/db"
)

func main() {
	// Load .env file. In production, variables are usually set directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading it: %v", err)
	}

	app := &cli.App{
		Name:   "blog",
		Usage:  "blog API with tagged, self-expiring posts",
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the expiry sweeper (default)",
				Action: serveCommand,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrateCommand,
			},
			{
				Name:   "sweep",
				Usage:  "delete expired posts once and exit",
				Action: sweepCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the environment and points the standard logger at the configured
// rotating file, in addition to stderr.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Log.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		}))
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c.Context)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	return serve(ctx, cfg, b)
}

func migrateCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StoragePostgres)
	}
	if err := db.RunMigrations(cfg.DBPools.JobPool, cfg.MigrationsDir); err != nil {
		return err
	}
	log.Println("Migrations applied.")
	return nil
}

func sweepCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c.Context)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	sweeper, err := b.Sweeper(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		log.Println("Sweep skipped: another instance holds the lock.")
		return nil
	}
	log.Printf("Sweep done: %d expired, %d deleted.", res.Found, len(res.Deleted))
	return nil
}
