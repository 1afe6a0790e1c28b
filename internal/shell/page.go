package shell

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/meals-shell/internal/flags"
	"github.com/eugenenazirov/meals-shell/internal/shell/templates"
)

const (
	defaultTitle     = "Meals"
	defaultAppScript = "/static/main.js"
	defaultModule    = "Main"
	flagsElementID   = "app-flags"
)

var modulePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*(\.[A-Z][A-Za-z0-9_]*)*$`)

// PageOptions describes the bootstrap page around the application bundle.
type PageOptions struct {
	Title     string
	AppScript string
	// Module is the dotted name of the compiled module exposing init, e.g. "Main".
	Module string
}

type pageData struct {
	Title     string
	AppScript string
	Module    string
	MountID   string
	FlagsID   string
	Flags     flags.Flags
}

// Page renders the bootstrap HTML once flags are handed to it and serves it afterwards.
// When the flags carry no viewport the page script fills width and height from
// the browser window before calling init.
type Page struct {
	opts   PageOptions
	tmpl   *template.Template
	logger *zap.Logger

	mu    sync.RWMutex
	ready bool
	body  []byte
	flags flags.Flags
	err   error
}

// NewPage parses the embedded template. Empty options take defaults.
func NewPage(opts PageOptions, logger *zap.Logger) (*Page, error) {
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	if opts.AppScript == "" {
		opts.AppScript = defaultAppScript
	}
	if opts.Module == "" {
		opts.Module = defaultModule
	}
	if !modulePattern.MatchString(opts.Module) {
		return nil, fmt.Errorf("invalid module name %q", opts.Module)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.ParseFS(templates.FS, "index.html")
	if err != nil {
		return nil, fmt.Errorf("parse bootstrap template: %w", err)
	}

	return &Page{
		opts:   opts,
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

// Init implements EntryPoint. The page keeps its own copy of f.
func (p *Page) Init(mount MountPoint, f flags.Flags) {
	data := pageData{
		Title:     p.opts.Title,
		AppScript: p.opts.AppScript,
		Module:    p.opts.Module,
		MountID:   mount.ElementID,
		FlagsID:   flagsElementID,
		Flags:     f,
	}

	var buf bytes.Buffer
	err := p.tmpl.Execute(&buf, data)
	if err != nil {
		p.logger.Error("render bootstrap page", zap.Error(err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = true
	p.flags = f
	p.body = buf.Bytes()
	p.err = err
}

// Flags returns the flags the page was initialized with.
func (p *Page) Flags() (flags.Flags, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flags, p.ready
}

// ServeHTTP writes the rendered page. Before Init it responds 503.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r
	p.mu.RLock()
	ready, body, err := p.ready, p.body, p.err
	p.mu.RUnlock()

	switch {
	case !ready:
		http.Error(w, "application is starting", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, "bootstrap page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
