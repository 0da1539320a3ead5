package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"modelkeep/internal/catalog"
	"modelkeep/internal/config"
	"modelkeep/internal/downloads"
	"modelkeep/internal/events"
	"modelkeep/internal/logging"
)

// Maintenance triggers the serialized upkeep operations.
type Maintenance interface {
	StartCheck(ctx context.Context) error
	StartClean(ctx context.Context) error
	Remove(ctx context.Context, ids []int64) error
}

// Downloader accepts download requests and answers location queries.
type Downloader interface {
	Start(ctx context.Context, req downloads.Request) error
	SavedLocation(ctx context.Context, modelType, hash string) (string, bool, error)
}

// Server owns the HTTP listener. Background work spawned from handlers
// (downloads, maintenance) runs on the daemon context handed to Start, not
// on request contexts.
type Server struct {
	cfg        *config.Config
	store      *catalog.Store
	maint      Maintenance
	downloader Downloader
	hub        *events.Hub
	logger     *slog.Logger

	startedAt time.Time
	baseCtx   context.Context

	listener net.Listener
	server   *http.Server
}

// New assembles the server and its routes.
func New(
	cfg *config.Config,
	store *catalog.Store,
	maint Maintenance,
	downloader Downloader,
	hub *events.Hub,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		maint:      maint,
		downloader: downloader,
		hub:        hub,
		logger:     logging.WithComponent(logger, "server"),
		startedAt:  time.Now(),
		baseCtx:    context.Background(),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/item", s.handleSearch)
		r.Get("/item/saved_location", s.handleSavedLocation)
		r.Get("/item/civitai_download", s.handleDownload)
		r.Get("/item/delete", s.handleDelete)
		r.Post("/item/update", s.handleUpdate)
		r.Post("/maintenance/check", s.handleCheck)
		r.Post("/maintenance/clean", s.handleClean)
		r.Get("/job", s.handleJobs)
		r.Get("/tag", s.handleTags)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/events", s.handleEvents)

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the assembled routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the configured address and serves until ctx is cancelled. ctx
// also becomes the parent of handler-spawned background work.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	if bind == "" {
		return errors.New("server bind address is empty")
	}

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", bind, err)
	}
	s.listener = listener
	s.baseCtx = ctx

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down, giving inflight requests a short grace
// period.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", logging.Error(err))
	}
}

func (s *Server) pageSize() int64 {
	if s.cfg.Server.PerPage > 0 {
		return int64(s.cfg.Server.PerPage)
	}
	return 20
}
