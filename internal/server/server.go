// Package server exposes detection, translation, and live sessions over a
// local HTTP and WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rbright/voxlate/internal/langid"
	"github.com/rbright/voxlate/internal/session"
	"github.com/rbright/voxlate/internal/translate"
)

const shutdownTimeout = 5 * time.Second

// Detector identifies text language with ranked alternatives.
type Detector interface {
	Identify(text string) (langid.Detection, bool)
	IdentifyAll(text string) []langid.Detection
}

// Options wires the server's collaborators.
type Options struct {
	Detector   Detector
	Translator translate.Translator
	// NewSession builds the coordinator backing one websocket.
	NewSession func(id string) *session.Coordinator
	// DefaultTarget is used when a translate request names no target.
	DefaultTarget string
	Logger        *slog.Logger
}

// Server routes the API.
type Server struct {
	opts     Options
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New builds a server and registers its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		opts:   opts,
		logger: logger,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameHostOrigin,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestID)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/languages", s.handleLanguages).Methods(http.MethodGet)
	api.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	api.HandleFunc("/translate", s.handleTranslate).Methods(http.MethodPost)
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	// Subrouters answer misses with their own handlers, not the parent's.
	for _, router := range []*mux.Router{s.router, api} {
		router.NotFoundHandler = http.HandlerFunc(routeNotFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "", fmt.Sprintf("method %s not allowed", r.Method))
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", listener.Addr().String())
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	<-errCh
	return nil
}

type requestIDKey struct{}

// requestID tags each request with an id header and logs its completion.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		started := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		s.logger.Debug("api request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// sameHostOrigin accepts requests without an Origin and same-host browsers.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host, err := originHost(origin)
	if err != nil {
		return false
	}
	return host == r.Host || isLoopbackHost(host)
}
