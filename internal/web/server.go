package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps holds what the web UI needs.
type Deps struct {
	Store     *store.Store
	Config    *config.Config
	Settings  *config.Settings
	Generator ai.Generator
	Logger    *slog.Logger
	Version   string
}

// Server is the acta web UI.
type Server struct {
	*http.Server
	handlers *Handlers
	logger   *slog.Logger
}

// NewServer creates and configures the HTTP server for the web UI.
func NewServer(deps Deps) (*Server, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	h := &Handlers{
		store:    deps.Store,
		cfg:      cfg,
		settings: deps.Settings,
		gens:     newGenerations(deps.Store, deps.Generator, cfg.GenerateTimeout(), logger),
		renderer: NewRenderer(templateSub, deps.Version, logger),
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/meetings", http.StatusFound)
	})
	mux.HandleFunc("GET /meetings", h.HandleList)
	mux.HandleFunc("POST /meetings", h.HandleCreate)
	mux.HandleFunc("GET /meetings/{id}", h.HandleDetail)
	mux.HandleFunc("POST /meetings/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /meetings/{id}", h.HandleDelete)
	mux.HandleFunc("POST /meetings/{id}/delete", h.HandleDelete)
	mux.HandleFunc("POST /meetings/{id}/tags", h.HandleTagAdd)
	mux.HandleFunc("POST /meetings/{id}/tags/remove", h.HandleTagRemove)
	mux.HandleFunc("POST /meetings/{id}/generate", h.HandleGenerate)
	mux.HandleFunc("POST /meetings/{id}/notice/dismiss", h.HandleDismiss)
	mux.HandleFunc("POST /meetings/{id}/images", h.HandleImageUpload)
	mux.HandleFunc("GET /images/{id}", h.HandleImage)
	mux.HandleFunc("DELETE /images/{id}", h.HandleImageDelete)
	mux.HandleFunc("POST /images/{id}/delete", h.HandleImageDelete)
	mux.HandleFunc("GET /settings", h.HandleSettings)
	mux.HandleFunc("POST /settings", h.HandleSettingsSave)
	mux.HandleFunc("GET /events", h.HandleEvents)
	mux.HandleFunc("GET /meetings/{id}/events", h.HandleMeetingEvents)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	// Event streams never go idle; cancelling the base context ends them
	// when Shutdown starts.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.WebAddr(),
		Handler:           securityHeaders(requestLog(logger, mux)),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)
	srv.RegisterOnShutdown(h.gens.stop)

	return &Server{Server: srv, handlers: h, logger: logger}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data: blob:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps the event stream working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// requestLog logs each request at debug level.
func requestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	srv.logger.Info("acta UI running", "url", "http://"+srv.Addr)

	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]") || strings.HasPrefix(srv.Addr, ":") {
		srv.logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		srv.logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(ctx)
		srv.handlers.gens.wait()
		return err
	}
}
