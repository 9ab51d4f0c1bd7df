package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vrlab/calagent/internal/authflow"
	"github.com/vrlab/calagent/internal/instrumentation"
	"github.com/vrlab/calagent/internal/logging"
)

const (
	// DefaultAddr is the default bind address for the API server.
	DefaultAddr = ":8000"

	// DefaultReadHeaderTimeout bounds how long reading request headers may take.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a whole response write. Chat turns make two
	// completion calls, so this must comfortably exceed the completion timeout.
	DefaultWriteTimeout = 150 * time.Second

	// DefaultIdleTimeout is the keep-alive idle timeout.
	DefaultIdleTimeout = 60 * time.Second
)

// ChatService runs one chat turn and returns the assistant's reply.
type ChatService interface {
	Handle(ctx context.Context, userID, message string) (string, error)
}

// AuthFlow drives the three-legged OAuth authorization-code exchange.
type AuthFlow interface {
	BeginAuthorization(userID string) (authURL, state string, err error)
	CompleteAuthorization(ctx context.Context, callbackURL string) (authflow.Result, error)
}

// Config holds configuration for the API server.
type Config struct {
	// Addr is the address to bind to (e.g. ":8000").
	Addr string
}

// Server is the calagent API server.
type Server struct {
	addr    string
	chat    ChatService
	auth    AuthFlow
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	health  *HealthChecker

	httpServer *http.Server
}

// New creates an API server over the given collaborators.
func New(cfg Config, auth AuthFlow, chat ChatService, logger *slog.Logger, metrics *instrumentation.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    cfg.Addr,
		chat:    chat,
		auth:    auth,
		logger:  logger,
		metrics: metrics,
		health:  NewHealthChecker(),
	}
}

// Health returns the server's health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Handler builds the full request handler, middleware included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /auth/google", s.handleAuthGoogle)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /chat", s.handleChat)

	s.health.RegisterHealthEndpoints(mux)

	return s.recoverMiddleware(s.corsMiddleware(s.metricsMiddleware(mux)))
}

// Start starts the API server in a blocking manner.
// Call this in a goroutine if you need non-blocking operation.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.logger.Info("starting API server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the API server. Readiness probes start
// failing immediately so load balancers drain before connections close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	if s.httpServer != nil {
		s.logger.Info("shutting down API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// statusResponse is the root liveness payload.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// chatRequest is the POST /chat request body.
type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// chatResponse is the POST /chat response body.
type chatResponse struct {
	Reply string `json:"reply"`
}

// errorResponse carries a human-readable error detail for 4xx/5xx responses.
type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "online",
		Message: "VR Agent API is running",
	})
}

func (s *Server) handleAuthGoogle(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "user_id query parameter is required"})
		return
	}

	authURL, _, err := s.auth.BeginAuthorization(userID)
	if err != nil {
		// Lenient by inheritance: initiation failures report an error
		// body rather than an error status.
		s.logger.Error("failed to initiate authorization",
			logging.Operation("auth.begin"),
			logging.UserHash(userID),
			logging.Err(err))
		writeJSON(w, http.StatusOK, authflow.Result{
			Status:  "error",
			Message: fmt.Sprintf("Failed to initiate authentication: %v", err),
		})
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	result, err := s.auth.CompleteAuthorization(r.Context(), r.URL.String())
	if err != nil {
		if errors.Is(err, authflow.ErrInvalidState) {
			s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid or expired OAuth state"})
			return
		}
		s.logger.Error("authorization callback failed",
			logging.Operation("auth.callback"),
			logging.Err(err))
		s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "An error occurred"})
		return
	}

	if result.Status == "success" {
		s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultSuccess)
	} else {
		s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
	}

	// Exchange and storage failures come back as an error result with a
	// 200 status, matching the flow manager's lenient contract.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: fmt.Sprintf("Validation error: %v", err)})
		return
	}
	if req.Message == "" || req.UserID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "Validation error: message and user_id are required"})
		return
	}

	reply, err := s.chat.Handle(r.Context(), req.UserID, req.Message)
	if err != nil {
		s.logger.Error("chat turn failed",
			logging.Operation("chat.handle"),
			logging.UserHash(req.UserID),
			logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "An error occurred"})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// recoverMiddleware converts a panicking handler into a 500 response so a
// single bad request cannot take the process down.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic while serving request",
					logging.Operation("http.serve"),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec))
				writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "An error occurred"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows cross-origin requests from any origin. The API is
// called from VR clients served elsewhere.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and durations.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
