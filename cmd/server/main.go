package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/meals-shell/internal/application"
	"github.com/eugenenazirov/meals-shell/internal/config"
	"github.com/eugenenazirov/meals-shell/internal/flags"
	"github.com/eugenenazirov/meals-shell/internal/logging"
	"github.com/eugenenazirov/meals-shell/internal/shell"
)

var signalNotify = signal.Notify

const (
	commandServe = "serve"
	commandFlags = "flags"
)

func main() {
	command, overrides, err := parseArgs(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("%v", err)
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	source, err := application.NewSource(cfg)
	if err != nil {
		logger.Fatal("failed to open environment source", zap.Error(err))
	}

	switch command {
	case commandFlags:
		if err := printFlags(os.Stdout, cfg, source, logger); err != nil {
			logger.Fatal("failed to resolve flags", zap.Error(err))
		}
	case commandServe:
		serve(cfg, source, logger)
	}
}

// parseArgs parses the command line into the selected command and the
// overrides applied on top of environment and YAML configuration.
func parseArgs(args []string) (string, *config.CLIOverrides, error) {
	kingpinApp := kingpin.New("meals-shell", "Meals front-end shell - resolves start-up flags and serves the application bundle")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	envFile := kingpinApp.Flag("env-file", "Path to a .env file read beneath the process environment").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	var requireModeSet bool
	requireMode := kingpinApp.Flag("require-mode", "Fail start-up when the deployment mode is unset instead of defaulting").IsSetByUser(&requireModeSet).Bool()

	serveCmd := kingpinApp.Command(commandServe, "Resolve flags and serve the bootstrap page").Default()
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	staticDir := serveCmd.Flag("static-dir", "Directory holding the compiled front-end assets").String()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpinApp.Command(commandFlags, "Resolve flags against this terminal and print the handoff payload")

	command, err := kingpinApp.Parse(args)
	if err != nil {
		return "", nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *envFile != "" {
		overrides.EnvFile = envFile
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if requireModeSet {
		overrides.RequireMode = requireMode
	}

	if *port != "" {
		overrides.Port = port
	}

	if *staticDir != "" {
		overrides.StaticDir = staticDir
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	return command, overrides, nil
}

func serve(cfg config.Config, source flags.Source, logger *zap.Logger) {
	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if _, err := app.Launch(source, application.NewMetrics(cfg)); err != nil {
		logger.Fatal("failed to launch application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

// printFlags hands the flags to an entry point that writes the payload to w.
// The terminal viewport is used when the configuration leaves the viewport unset.
func printFlags(w io.Writer, cfg config.Config, source flags.Source, logger *zap.Logger) error {
	resolver, err := flags.NewResolver(cfg.Bootstrap.Policy(), flags.WithLogger(logger))
	if err != nil {
		return err
	}

	metrics := application.NewMetrics(cfg)
	if cfg.Bootstrap.Viewport == "" {
		metrics = flags.StdoutTerminal()
	}

	var writeErr error
	entry := shell.EntryFunc(func(_ shell.MountPoint, f flags.Flags) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		writeErr = enc.Encode(f)
	})

	launcher := shell.NewLauncher(resolver, entry, logger)
	if _, err := launcher.Launch(source, metrics, shell.MountPoint{ElementID: cfg.Bootstrap.MountID}); err != nil {
		return err
	}
	return writeErr
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
