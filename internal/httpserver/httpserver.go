// Package httpserver exposes the orchestrator over HTTP, following the
// stdlib http.ServeMux + promhttp.Handler()/healthz shape the teacher's
// gateway package uses for its own HTTP surface.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/orchestrator"
	"github.com/stockgateway/stockgateway/internal/stream"
)

// Server serves the chat API and operational endpoints over HTTP.
type Server struct {
	orch      *orchestrator.Orchestrator
	logger    *slog.Logger
	startedAt time.Time

	httpServer *http.Server
	listener   net.Listener
}

// New builds a Server around an already-wired Orchestrator.
func New(orch *orchestrator.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, logger: logger, startedAt: time.Now()}
}

// Start binds addr and serves until ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/chat/stream", s.handleChatStream)
	mux.HandleFunc("/chat/clear", s.handleChatClear)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("stockgateway http server listening", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type chatRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
	SystemPrompt   string `json:"system_prompt"`
}

func (s *Server) toOrchestratorRequest(r *http.Request) (orchestrator.Request, error) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return orchestrator.Request{}, gatewayerr.New(gatewayerr.InvalidRequest, "invalid request body", err)
	}
	if body.Prompt == "" {
		return orchestrator.Request{}, gatewayerr.New(gatewayerr.InvalidRequest, "prompt is required", nil)
	}
	return orchestrator.Request{
		Prompt:         body.Prompt,
		ConversationID: body.ConversationID,
		Deployment:     body.Model,
		SystemPrompt:   body.SystemPrompt,
	}, nil
}

// handleChat runs one turn to completion and returns the final Result as
// JSON (no streaming).
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := s.toOrchestratorRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	mux := stream.New()
	go drain(mux)

	result, err := s.orch.Run(r.Context(), req, mux)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// handleChatStream runs one turn and streams its events as SSE.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := s.toOrchestratorRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	mux := stream.New()
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- mux.WriteTo(r.Context(), w)
	}()

	if _, err := s.orch.Run(r.Context(), req, mux); err != nil {
		s.logger.Warn("chat stream turn failed", "error", err)
	}
	<-writeDone
}

type clearRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body clearRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ConversationID == "" {
		writeError(w, gatewayerr.New(gatewayerr.InvalidRequest, "conversation_id is required", err))
		return
	}
	if err := s.orch.Clear(body.ConversationID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"uptime_s":    int(time.Since(s.startedAt).Seconds()),
		"tool_count":  len(s.orch.ToolNames),
	})
}

func writeError(w http.ResponseWriter, err error) {
	kind := gatewayerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case gatewayerr.InvalidRequest, gatewayerr.ToolArgInvalid:
		status = http.StatusBadRequest
	case gatewayerr.NotFound:
		status = http.StatusNotFound
	case gatewayerr.RateLimited:
		status = http.StatusTooManyRequests
	case gatewayerr.Timeout:
		status = http.StatusGatewayTimeout
	case gatewayerr.UpstreamUnavailable:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": string(kind)})
}

// drain discards events from a Multiplexer that nobody is streaming, so
// Send calls from the non-streaming /chat path don't block.
func drain(mux *stream.Multiplexer) {
	for range mux.Events() {
	}
}
