// Package server exposes the vfs engine over HTTP.
//
// The caller's identity is read from a header set by an authenticating
// gateway and resolved to a user id through an account.Directory. Every
// /api route then acts inside that user's namespace.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/koustreak/drivebox/internal/account"
	"github.com/koustreak/drivebox/internal/download"
	"github.com/koustreak/drivebox/internal/errs"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/metrics"
	"github.com/koustreak/drivebox/internal/storage"
	"github.com/koustreak/drivebox/internal/vfs"
)

// Config tunes request handling.
type Config struct {
	// UserHeader carries the authenticated username.
	UserHeader string

	// MaxUploadMemory is the multipart size kept in memory; larger parts
	// spill to temporary files.
	MaxUploadMemory int64
}

// Deps are the collaborators a Server routes to.
type Deps struct {
	Engine   *vfs.Engine
	Download *download.Service
	Store    *storage.Adapter
	Accounts account.Directory
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil disables /metrics
	Log      *logger.Logger
}

// Server is the HTTP adapter. It is safe for concurrent use.
type Server struct {
	cfg      Config
	engine   *vfs.Engine
	download *download.Service
	store    *storage.Adapter
	accounts account.Directory
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      *logger.Logger

	// provisioned holds user ids whose root marker is known to exist.
	provisioned sync.Map
}

// New returns a Server.
func New(cfg Config, deps Deps) *Server {
	if cfg.UserHeader == "" {
		cfg.UserHeader = "X-Forwarded-User"
	}
	if cfg.MaxUploadMemory <= 0 {
		cfg.MaxUploadMemory = 32 << 20
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		cfg:      cfg,
		engine:   deps.Engine,
		download: deps.Download,
		store:    deps.Store,
		accounts: deps.Accounts,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		log:      log.Component("server"),
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(s.log.Zerolog()))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.identify)

		r.Get("/resource", s.handleResourceInfo)
		r.Post("/resource", s.handleUpload)
		r.Delete("/resource", s.handleDelete)
		r.Get("/resource/move", s.handleMove)
		r.Get("/resource/search", s.handleSearch)
		r.Get("/resource/download", s.handleDownload)
		r.Get("/resource/link", s.handleLink)

		r.Get("/directory", s.handleListDirectory)
		r.Post("/directory", s.handleCreateDirectory)
	})

	return r
}

// instrument records request metrics keyed by the matched route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

type userIDKey struct{}

// identify resolves the gateway-supplied username and makes sure the
// user's root folder exists before any handler runs.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.Header.Get(s.cfg.UserHeader))
		if name == "" {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := r.Context()
		id, err := s.accounts.LookupID(ctx, name)
		if err != nil {
			if errs.IsNotFound(err) {
				writeMessage(w, http.StatusUnauthorized, "unknown user")
				return
			}
			s.log.ErrorWith("account lookup failed", err, logger.Fields{"username": name})
			writeMessage(w, http.StatusInternalServerError, "account lookup failed")
			return
		}

		if _, ok := s.provisioned.Load(id); !ok {
			if err := s.engine.EnsureUserRoot(ctx, id); err != nil {
				s.fail(w, r, err)
				return
			}
			s.provisioned.Store(id, struct{}{})
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Int64("user_id", id)
		})
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userIDKey{}, id)))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey{}).(int64)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.ErrorWith("health check: store unreachable", err, nil)
		writeMessage(w, http.StatusServiceUnavailable, "object store unreachable")
		return
	}
	if err := s.accounts.Ping(r.Context()); err != nil {
		s.log.ErrorWith("health check: account store unreachable", err, nil)
		writeMessage(w, http.StatusServiceUnavailable, "account store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
