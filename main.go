// Package main is the entry point for the imgwatch application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pixelframe/imgwatch/internal/backend"
	"github.com/pixelframe/imgwatch/internal/config"
	"github.com/pixelframe/imgwatch/internal/dispatch"
	"github.com/pixelframe/imgwatch/internal/hostpool"
	"github.com/pixelframe/imgwatch/internal/pipeline"
	"github.com/pixelframe/imgwatch/internal/report"
	"github.com/pixelframe/imgwatch/internal/scan"
	"github.com/pixelframe/imgwatch/internal/store"
	"github.com/pixelframe/imgwatch/internal/tui"
	"github.com/pixelframe/imgwatch/internal/watcher"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fatal", "error", err)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgres(cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	logger.Info("connected to database")

	analyzer, err := backend.New(cfg.BackendKind(), cfg.APIKey, nil, logger.With("component", "backend"))
	if err != nil {
		return err
	}

	pipe := pipeline.New(pipeline.Options{
		Analyzer:       analyzer,
		Pool:           hostpool.New(cfg.Hosts, cfg.UnavailableDuration, logger.With("component", "hostpool")),
		Store:          db,
		Model:          cfg.Model,
		Prompt:         cfg.Prompt,
		Timeout:        cfg.Timeout,
		IgnoreExisting: cfg.IgnoreExisting,
		Logger:         logger.With("component", "pipeline"),
	})
	if cfg.IgnoreExisting {
		logger.Info("reprocessing files that already have descriptions")
	}

	switch cfg.Mode() {
	case config.ModeCombined:
		return runCombined(ctx, cfg, pipe, logger)
	case config.ModeMonitor:
		return runMonitor(ctx, cfg, pipe, logger)
	default:
		return runBatch(ctx, cfg, pipe, logger, true)
	}
}

// runBatch processes every existing preview file once. With interactive set
// and stdout on a terminal, a live progress line is shown while workers run.
func runBatch(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, logger *log.Logger, interactive bool) error {
	files, err := scan.PreviewFiles(cfg.Root, logger.With("component", "scan"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No preview files found. Use --monitor to wait for new files instead.")
		return nil
	}

	logger.Info("starting batch run",
		"files", len(files),
		"model", cfg.Model,
		"max_concurrent", cfg.MaxConcurrent,
		"timeout", cfg.Timeout)

	progress := tui.New(len(files), os.Stdout, interactive && isTerminal(os.Stdout))
	d := dispatch.New(pipe, cfg.MaxConcurrent)
	d.OnStart(progress.FileStarted)
	d.OnComplete(progress.FileDone)

	progress.Start()
	outcomes := d.RunAll(ctx, files)
	progress.Stop()

	summary := report.Render(os.Stdout, outcomes, cfg.MaxConcurrent > 1)
	logger.Info("batch run finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
	return nil
}

// runMonitor watches the thumbs tree until interrupted, printing each
// outcome as its run finishes.
func runMonitor(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, logger *log.Logger) error {
	thumbs, err := scan.ThumbsDir(cfg.Root)
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	w, err := watcher.New(watcher.Options{
		Dir:               thumbs,
		EventCooldown:     cfg.EventCooldown,
		FileCheckInterval: cfg.FileCheckInterval,
		FileWriteTimeout:  cfg.FileWriteTimeout,
		Runner:            pipe,
		Logger:            logger.With("component", "watcher"),
		OnOutcome: func(o pipeline.Outcome) {
			outMu.Lock()
			defer outMu.Unlock()
			fmt.Println(report.Format(o))
		},
	})
	if err != nil {
		return err
	}

	if err := w.Run(ctx); err != nil {
		return err
	}
	w.Wait()
	return nil
}

// runCombined runs one batch pass over the existing files while the monitor
// is already watching, so nothing arriving mid-pass is missed.
func runCombined(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, logger *log.Logger) error {
	logger.Info("combined mode: processing existing files while monitoring for new ones")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Progress UI stays off; monitor output owns the terminal.
		if err := runBatch(ctx, cfg, pipe, logger, false); err != nil {
			logger.Error("batch pass failed", "error", err)
			return
		}
		logger.Info("batch pass finished, monitor continues")
	}()

	err := runMonitor(ctx, cfg, pipe, logger)
	wg.Wait()
	return err
}

// isTerminal reports whether w is attached to a terminal.
func isTerminal(w *os.File) bool {
	info, err := w.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
