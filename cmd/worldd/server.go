package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/timson/worlddb/pkg/utils"
	"github.com/timson/worlddb/storage"
	"github.com/timson/worlddb/world"
)

type Server struct {
	DB     *storage.DB
	World  *world.World
	Logger *slog.Logger
	Config *Config
	Server *http.Server
}

func NewServer(cfg *Config, db *storage.DB, w *world.World, logger *slog.Logger) *Server {
	return &Server{
		Config: cfg,
		DB:     db,
		World:  w,
		Logger: logger,
	}
}

func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			next.ServeHTTP(w, r)

			logger.Info("Request completed",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.Duration("duration", time.Since(startTime)))
		})
	}
}

func (srv *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(srv.Logger))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", srv.handleHealth)
	})
	r.Method(http.MethodGet, "/metrics", newMetricsHandler(srv.DB, srv.World))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/db", func(r chi.Router) {
			r.Get("/status", srv.handleStatus)
		})
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", srv.handleListCollections)
			r.Post("/", srv.handleCreateCollection)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", srv.handleGetCollection)
				r.Get("/features", srv.handleGetFeatures)
				r.Post("/features", srv.handleInsertFeature)
			})
		})
		r.Route("/records", func(r chi.Router) {
			r.Post("/", srv.handleWriteRecord)
			r.Get("/{page}/{slot}", srv.handleReadRecord)
		})
	})

	return r
}

// resolvePort replaces a configured port of 0 with a free one.
func (srv *Server) resolvePort() error {
	if srv.Config.Server.Port != 0 {
		return nil
	}
	port, err := utils.GenerateAvailablePort()
	if err != nil {
		return err
	}
	srv.Config.Server.Port = port
	return nil
}

// Prepare resolves the port and builds the http.Server. It must run before
// Start and Stop are called from different goroutines.
func (srv *Server) Prepare() error {
	if srv.Server != nil {
		return nil
	}
	if err := srv.resolvePort(); err != nil {
		return err
	}
	srv.Server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", srv.Config.Server.Host, srv.Config.Server.Port),
		Handler: srv.buildRouter(),
	}
	return nil
}

func (srv *Server) Start() error {
	if err := srv.Prepare(); err != nil {
		return err
	}
	srv.Logger.Info("started listening", "port", srv.Config.Server.Port, "host", srv.Config.Server.Host)
	srv.Logger.Info("press Ctrl+C to exit")

	if err := srv.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		srv.Logger.Error("HTTP server error", slog.Any("err", err))
		return err
	}

	return nil
}

func (srv *Server) Stop() error {
	srv.Logger.Info("stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if srv.Server != nil {
		if err := srv.Server.Shutdown(ctx); err != nil {
			srv.Logger.Error("HTTP server shutdown error", "error", err)
			return err
		}
	}

	srv.Logger.Info("HTTP server stopped")
	return nil
}
