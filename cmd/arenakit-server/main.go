package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"arenakit/simulate"
)

// Flags are the command line options; everything else comes from the
// environment or the config file.
type Flags struct {
	Config      string `help:"JSON or YAML configuration file." short:"c" type:"path" env:"ARENAKIT_CONFIG"`
	Profile     string `help:"Start from a named profile (development, testing, staging, production)." short:"p"`
	EnvFile     string `name:"env-file" help:"Dotenv file loaded before configuration." default:".env"`
	Addr        string `help:"Override the listen address."`
	PrintConfig bool   `name:"print-config" help:"Print the effective configuration with secrets redacted and exit."`
}

func main() {
	var flags Flags
	kong.Parse(&flags,
		kong.Name("arenakit-server"),
		kong.Description("Multiplayer arena server: ratings, sessions, lobbies and achievements."),
		kong.UsageOnError(),
	)

	if err := loadEnvFile(flags.EnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", flags.EnvFile, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, cleanup, err := BuildApp(ctx, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := app.Config
	if flags.PrintConfig {
		fmt.Println(cfg.String())
		return
	}

	slog.Info("starting arenakit server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"simulation", cfg.Simulation.Enabled,
		"analytics", cfg.Analytics.Enabled)

	if app.Simulator != nil {
		app.Simulator.Start(ctx)
	}
	stopExport := startExport(ctx, app)

	srv := app.Server

	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				return
			}
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	stopExport(shutdownCtx)
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// loadEnvFile populates the process environment from a dotenv file. A
// missing file is not an error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// startExport schedules the daily analytics snapshot export. The returned
// func stops the schedule and ships a final snapshot.
func startExport(ctx context.Context, app *App) func(context.Context) {
	if app.Analytics == nil || app.Exporter == nil {
		return func(context.Context) {}
	}
	log := app.Logger.With("component", "analytics_export")
	export := func(ctx context.Context) {
		if err := app.Analytics.ExportDay(ctx, app.Exporter, time.Now()); err != nil {
			log.Warn("analytics export failed", "error", err)
			return
		}
		if err := app.Exporter.Flush(ctx); err != nil {
			log.Warn("analytics flush failed", "error", err)
		}
	}
	stop := simulate.TickerScheduler{}.Every(app.Config.Analytics.ExportInterval, func() { export(ctx) })
	return func(final context.Context) {
		stop()
		export(final)
	}
}
