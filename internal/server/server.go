// Package server exposes the HTTP surface of Voxline: the /ws conversation
// endpoint plus the /healthz, /readyz and /metrics operational routes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxline/voxline/internal/health"
	"github.com/voxline/voxline/internal/observe"
	"github.com/voxline/voxline/internal/session"
)

// shutdownTimeout bounds how long Run waits for in-flight requests after the
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// Config assembles the server's collaborators.
type Config struct {
	// ListenAddr is the TCP address to bind (e.g. ":8080").
	ListenAddr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	Sessions *session.Handler
	Health   *health.Handler
	Obs      *observe.Metrics

	Log *slog.Logger
}

// Server serves the conversation endpoint and operational routes.
type Server struct {
	cfg  Config
	log  *slog.Logger
	http *http.Server
}

// New builds the route table. The /ws route bypasses the observability
// middleware because the connection is hijacked and outlives the request.
func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, log: log}

	ops := http.NewServeMux()
	if cfg.Health != nil {
		cfg.Health.Register(ops)
	}
	ops.Handle("GET /metrics", promhttp.Handler())

	root := http.NewServeMux()
	root.HandleFunc("GET /ws", s.handleWS)
	if cfg.Obs != nil {
		root.Handle("/", observe.Middleware(cfg.Obs)(ops))
	} else {
		root.Handle("/", ops)
	}

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully. Request
// contexts derive from ctx, so cancelling it also reaches hijacked /ws
// connections, which [http.Server.Shutdown] does not track; Run waits for
// those sessions to drain before returning, so the caller may release
// session collaborators (like the metrics recorder) once it returns.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }

	g.Go(func() error {
		s.log.Info("listening", "addr", s.cfg.ListenAddr, "tls", s.cfg.CertFile != "")
		var err error
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			err = s.http.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.http.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if s.cfg.Sessions != nil {
			return s.cfg.Sessions.Drain(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

// handleWS upgrades the request and hands the connection to the session
// handler for its whole lifetime.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s.cfg.Sessions.Serve(r.Context(), conn)
	conn.Close(websocket.StatusNormalClosure, "session ended")
}
