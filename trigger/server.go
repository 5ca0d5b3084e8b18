package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/glimte/streamgen/health"
	"github.com/glimte/streamgen/loadgen"
)

// Burster publishes a bounded burst to one stream. *loadgen.Loop satisfies it.
type Burster interface {
	Burst(ctx context.Context, stream string, count int) (int, error)
	BurstSize() int
}

// PublishResponse is the body of every /publish answer
type PublishResponse struct {
	Status    string `json:"status"`
	Published int    `json:"published"`
	Error     string `json:"error,omitempty"`
}

// Server serves the trigger, health and metrics routes
type Server struct {
	burster       Burster
	registry      *health.Registry
	metrics       http.Handler
	healthTimeout time.Duration
	logger        *slog.Logger
	srv           *http.Server
}

// ServerOption configures the Server
type ServerOption func(*Server)

// WithHealth serves the registry on /healthz and /readyz
func WithHealth(registry *health.Registry) ServerOption {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithHealthTimeout bounds how long health routes wait for checks
func WithHealthTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.healthTimeout = timeout
	}
}

// WithMetrics serves handler on /metrics
func WithMetrics(handler http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new trigger server
func NewServer(burster Burster, options ...ServerOption) *Server {
	s := &Server{
		burster:       burster,
		healthTimeout: 5 * time.Second,
		logger:        slog.Default(),
	}

	for _, opt := range options {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/publish", s.handlePublish)
	mux.Handle("/livez", health.LivenessHandler())
	if s.registry != nil {
		mux.Handle("/healthz", health.NewHandler(s.registry, s.healthTimeout))
		mux.Handle("/readyz", health.ReadinessHandler(s.registry, s.healthTimeout))
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe binds to addr and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.logger.Info("trigger server listening", "addr", l.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()

	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close stops accepting connections and closes active ones. Safe to call
// concurrently with Serve; a Serve that starts afterwards returns at once.
func (s *Server) Close() {
	_ = s.srv.Close()
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	stream := query.Get("queue")
	if stream == "" {
		writeJSON(w, http.StatusBadRequest, PublishResponse{Status: "invalid", Error: "queue parameter is required"})
		return
	}

	count := s.burster.BurstSize()
	if v := query.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, PublishResponse{Status: "invalid", Error: "count must be a positive integer"})
			return
		}
		if n < count {
			count = n
		}
	}

	published, err := s.burster.Burst(r.Context(), stream, count)
	if err != nil {
		// Broker detail stays in the log.
		s.logger.Error("triggered burst failed", "stream", stream, "published", published, "requested", count, "error", err)
		writeJSON(w, http.StatusInternalServerError, PublishResponse{Status: "failed", Published: published})
		return
	}

	writeJSON(w, http.StatusCreated, PublishResponse{Status: "created", Published: published})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var _ Burster = (*loadgen.Loop)(nil)
