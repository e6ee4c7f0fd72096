// Package server exposes the client state on a local HTTP endpoint, so that
// other UIs can observe it while `bitlum watch` runs.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/state"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/util"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
)

const shutdownTimeout = 5 * time.Second

// Server serves the local state feed.
type Server struct {
	state    *state.State
	hub      *Hub
	gatherer prometheus.Gatherer
	logger   *pterm.Logger
	router   chi.Router
	stop     []func()
}

// Option configures a Server.
type Option func(*config)

type config struct {
	gatherer prometheus.Gatherer
	logger   *pterm.Logger
	origins  []string
}

// WithGatherer sets where /metrics reads from. Defaults to
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *pterm.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithAllowedOrigins lists the browser origins allowed to open the feed.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *config) {
		c.origins = origins
	}
}

// New builds a Server and subscribes it to st. Call Close to unsubscribe.
func New(st *state.State, opts ...Option) *Server {
	c := config{gatherer: prometheus.DefaultGatherer, logger: logging.Discard()}
	for _, opt := range opts {
		opt(&c)
	}

	s := &Server{
		state:    st,
		hub:      NewHub(c.logger, c.origins...),
		gatherer: c.gatherer,
		logger:   c.logger,
	}
	s.stop = []func(){
		watch(s, st.Accounts.Authenticate),
		watch(s, st.Accounts.Get),
		watch(s, st.Payments.List),
		watch(s, st.Settings.Local),
		watch(s, st.UI.Chat),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.state.Summary())
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.ServeHTTP(w, r, Event{Type: EventHello, Summary: s.state.Summary()})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Serving local state feed", s.logger.Args("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Close unsubscribes from the state and disconnects feed clients.
func (s *Server) Close() {
	for _, stop := range s.stop {
		stop()
	}
	s.hub.Close()
}

// watch forwards every snapshot of st to the feed. Data is never forwarded,
// only its presence: the session store holds the token.
func watch[T any](s *Server, st *store.Store[T]) func() {
	return st.Subscribe(func(snap store.Snapshot[T]) {
		e := Event{
			Type:    EventStore,
			Store:   snap.Name,
			Loading: snap.Loading,
			HasData: snap.HasData,
		}
		if snap.Err != nil {
			e.Error = util.CleanedUpAPIError{Err: snap.Err}.Error()
			e.Code = util.ErrorCode(snap.Err)
		}
		s.hub.Broadcast(e)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request", s.logger.Args(
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		))
	})
}
