package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giygas/pn-calculator/config"
	"github.com/giygas/pn-calculator/data"
	"github.com/giygas/pn-calculator/display"
	"github.com/giygas/pn-calculator/document"
	"github.com/giygas/pn-calculator/handlers"
	"github.com/giygas/pn-calculator/health"
	"github.com/giygas/pn-calculator/interfaces"
	"github.com/giygas/pn-calculator/logging"
	"github.com/giygas/pn-calculator/scheduler"
	"github.com/giygas/pn-calculator/server"
	"github.com/giygas/pn-calculator/storage"
	"github.com/giygas/pn-calculator/summary"
	"github.com/giygas/pn-calculator/validation"
)

func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	// If failed, try loading from the executable directory
	ex, err := os.Executable()
	if err != nil {
		return
	}
	if err := godotenv.Load(filepath.Join(filepath.Dir(ex), ".env")); err != nil {
		fmt.Println("No .env file found, using the process environment")
	}
}

func main() {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerFromConfig(cfg)
	defer logging.Close()

	if err := run(cfg); err != nil {
		logging.Error("Service stopped with an error", "error", err)
		logging.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	blobs, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.StorageBackend,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer blobs.Close()

	store := data.NewPatientContainer(blobs)
	store.SetServerStartTime(time.Now())
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("load patients: %w", err)
	}

	formatter := display.NewFormatter(display.ParseLocale(cfg.Locale))

	var exporter interfaces.SheetExporter
	if cfg.ExportOnSave {
		fe, err := document.NewFileExporter(cfg.ExportDir, formatter)
		if err != nil {
			logging.Warn("Sheet export on save disabled", "error", err)
		} else {
			exporter = fe
		}
	}

	summarizer := summary.New(summary.Options{
		APIKey:    cfg.GeminiAPIKey,
		Model:     cfg.GeminiModel,
		BaseURL:   cfg.GeminiBaseURL,
		Timeout:   cfg.SummaryTimeout,
		PerMinute: cfg.SummaryPerMin,
	})
	if !summarizer.Enabled() {
		logging.Info("AI summaries disabled: GEMINI_API_KEY not set")
	}

	sched := scheduler.NewScheduler(store, scheduler.Options{
		BackupDir: cfg.BackupDir,
		BackupAt:  cfg.BackupAt,
		Retention: cfg.BackupRetention,
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// Health only tracks backup age when backups are scheduled
	var backups interfaces.Scheduler
	if sched.BackupsEnabled() {
		backups = sched
	}

	handler := handlers.NewHTTPHandler(handlers.Dependencies{
		Store:        store,
		Validator:    validation.NewDataValidator(),
		Exporter:     exporter,
		Summarizer:   summarizer,
		Health:       health.NewHealthChecker(store, backups),
		Formatter:    formatter,
		ExportOnSave: cfg.ExportOnSave,
	})

	srv := server.NewServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logging.Info("Service ready",
		"env", cfg.Env,
		"storage", blobs.Name(),
		"patients", store.Count(),
		"export_on_save", exporter != nil,
		"summaries", summarizer.Enabled(),
		"backups", sched.BackupsEnabled())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
