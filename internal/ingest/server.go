package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wfemitter/internal/config"
	"wfemitter/internal/emitter"
)

// Emitter consumes one decoded agent payload per invocation.
// Params: context, decoded payload, and per-request logger.
// Returns: error when the payload cannot be translated or delivered.
type Emitter interface {
	Emit(ctx context.Context, payload map[string]any, logger *slog.Logger) error
}

// Server accepts agent payloads over HTTP and forwards each to the emitter.
// Params: listen address, emitter, and logger for diagnostics.
// Returns: runnable ingest server instance.
type Server struct {
	listen string
	ln     net.Listener
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the ingest server and binds to the listen address.
// Params: cfg validated ingest settings; em payload consumer; logger root logger.
// Returns: server instance or bind error.
func NewServer(cfg config.IngestConfig, em Emitter, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.Listen, err)
	}

	handler := &payloadHandler{
		emitter: em,
		logger:  logger,
		maxBody: cfg.MaxBodyBytes,
	}

	router := chi.NewRouter()
	router.Post("/api/v1/intake", handler.handle)
	router.Post("/api/v1/series", handler.handle)

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		listen: cfg.Listen,
		ln:     ln,
		server: server,
		logger: logger,
	}, nil
}

// Addr returns the bound listen address.
// Params: none.
// Returns: host:port the server accepted on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Run starts serving and shuts down on context cancellation.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop; error on early serve failures.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		err := <-errCh
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("ingest server stopped unexpectedly", slog.String("listen", s.listen), slog.String("error", err.Error()))
		return err
	}
}

// payloadHandler decodes one payload per request and hands it to the emitter.
// Params: emitter, logger, and request body limit.
// Returns: HTTP handler for intake routes.
type payloadHandler struct {
	emitter Emitter
	logger  *slog.Logger
	maxBody int64
}

// handle processes one intake request: 202 on success, 400 for undecodable
// JSON, 422 for payload shape errors, 502 when the proxy is unreachable or
// unconfigured. Emitter failures are already logged by the engine; they never
// stop the server.
// Params: w response writer; r inbound request.
// Returns: none.
func (h *payloadHandler) handle(w http.ResponseWriter, r *http.Request) {
	body := io.LimitReader(r.Body, h.maxBody)

	var payload map[string]any
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		h.logger.Warn("undecodable intake body", slog.String("error", err.Error()))
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := h.emitter.Emit(r.Context(), payload, h.logger); err != nil {
		if errors.Is(err, emitter.ErrConnect) || errors.Is(err, emitter.ErrNotConfigured) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
