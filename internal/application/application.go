package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/meals-shell/internal/api"
	"github.com/eugenenazirov/meals-shell/internal/config"
	"github.com/eugenenazirov/meals-shell/internal/flags"
	"github.com/eugenenazirov/meals-shell/internal/shell"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	launcher *shell.Launcher
	page     *shell.Page
	mount    shell.MountPoint
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
// The front-end is not launched until Launch is called.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	resolver, err := flags.NewResolver(cfg.Bootstrap.Policy(), flags.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build flag resolver: %w", err)
	}

	page, err := shell.NewPage(shell.PageOptions{
		Title:     cfg.Bootstrap.Title,
		AppScript: cfg.Bootstrap.AppScript,
		Module:    cfg.Bootstrap.Module,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build bootstrap page: %w", err)
	}

	handler := api.NewHandler(page)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	staticDir, err := resolveStaticDir(cfg.StaticDir)
	if err != nil {
		logger.Warn("static assets disabled", zap.String("static_dir", cfg.StaticDir), zap.Error(err))
	}

	return &App{
		launcher: shell.NewLauncher(resolver, page, logger),
		page:     page,
		mount:    shell.MountPoint{ElementID: cfg.Bootstrap.MountID},
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, BuildRootHandler(page, apiRouter, staticDir)),
	}, nil
}

// Launch resolves the flags from source and metrics and hands them to the
// bootstrap page. It succeeds at most once.
func (a *App) Launch(source flags.Source, metrics flags.MetricsProvider) (flags.Flags, error) {
	return a.launcher.Launch(source, metrics, a.mount)
}

// BuildRootHandler serves the bootstrap page at "/", static assets under
// /static/ when staticDir is set, and routes /api/ to apiHandler.
func BuildRootHandler(page http.Handler, apiHandler http.Handler, staticDir string) http.Handler {
	mux := http.NewServeMux()

	if staticDir != "" {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		page.ServeHTTP(w, r)
	}))

	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// NewSource builds the environment source for flag resolution: the process
// environment layered over the configured env file, so set variables win.
func NewSource(cfg config.Config) (flags.Source, error) {
	if cfg.EnvFile == "" {
		return flags.EnvSource{}, nil
	}
	dotenv, err := flags.ReadDotenv(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	return flags.Chain(flags.EnvSource{}, dotenv), nil
}

// NewMetrics returns the viewport provider selected by the configuration, or
// nil when the viewport is none or unconfigured.
func NewMetrics(cfg config.Config) flags.MetricsProvider {
	switch cfg.Bootstrap.Viewport {
	case config.ViewportTerminal:
		return flags.StdoutTerminal()
	case config.ViewportStatic:
		return flags.StaticMetrics{Width: cfg.Bootstrap.ViewportWidth, Height: cfg.Bootstrap.ViewportHeight}
	default:
		return nil
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

func resolveStaticDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("no static directory configured")
	}
	if filepath.IsAbs(dir) {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", fmt.Errorf("static directory %s not found", dir)
		}
		return dir, nil
	}
	return resolveProjectPath(dir)
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
