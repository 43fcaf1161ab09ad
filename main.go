// Package main provides the entry point for the stack viewer.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	fyneapp "fyne.io/fyne/v2/app"

	"stackview/internal/app"
	"stackview/internal/config"
	"stackview/internal/logging"
	"stackview/internal/version"
	"stackview/ui/mainwindow"
	"stackview/ui/prefs"
)

const appID = "io.github.stackview"

func main() {
	configPath := flag.String("config", filepath.Join(prefs.Dir(), "config.yaml"), "Viewer configuration (.yaml, .json or .toml)")
	cacheBound := flag.Int("cache", 0, "Override the resident frame bound")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("stackview"))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stackview: %v\n", err)
		os.Exit(1)
	}
	if *cacheBound > 0 {
		cfg.CacheFrameBound = *cacheBound
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "stackview: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stackview: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	logger.Info("starting", "version", version.Version, "config", *configPath)

	state, err := app.NewState(cfg, logger)
	if err != nil {
		logger.Error("creating viewer state", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if watcher := watchConfig(state, *configPath, logger); watcher != nil {
		defer watcher.Stop()
	}

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.ViewerTheme{})

	win := mainwindow.New(fyneApp, state, prefs.Load(), logger)
	if flag.NArg() > 0 {
		win.OpenFile(flag.Arg(0))
	}
	win.ShowAndRun()
}

// watchConfig starts hot reload of path. A missing directory is created so
// a config saved later is still picked up.
func watchConfig(state *app.State, path string, logger *slog.Logger) *app.ConfigWatcher {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("config hot reload disabled", "error", err)
		return nil
	}
	w, err := app.WatchConfig(state, path)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
		return nil
	}
	logger.Debug("watching config", "path", w.Path())
	return w
}
