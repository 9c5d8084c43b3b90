package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

// BlockStore is the optional block browsing and settings surface, available
// when the host is the local block store.
type BlockStore interface {
	Block(ctx context.Context, uid string) (*domain.Block, error)
	CreateBlock(ctx context.Context, parentUID string, order int, text, uid string) (string, error)
	Settings(ctx context.Context) (domain.Settings, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Server exposes the plugin's commands and batch extraction over HTTP. It is
// the domain.Registry the plugin registers its commands with.
type Server struct {
	extractor  *domain.Extractor
	store      BlockStore
	logger     *slog.Logger
	httpServer *http.Server

	mu       sync.RWMutex
	commands map[string]domain.Command
}

// NewServer creates a new HTTP server. store may be nil.
func NewServer(port int, extractor *domain.Extractor, store BlockStore, logger *slog.Logger) *Server {
	s := &Server{
		extractor: extractor,
		store:     store,
		logger:    logger,
		commands:  make(map[string]domain.Command),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /commands", s.handleListCommands)
	mux.HandleFunc("POST /commands/{name}", s.handleRunCommand)
	mux.HandleFunc("POST /extract/auto", s.handleExtractTagged)
	mux.HandleFunc("GET /blocks/{uid}", s.handleGetBlock)
	mux.HandleFunc("POST /blocks", s.handleCreateBlock)
	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("PUT /settings", s.handlePutSettings)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// AddCommand registers cmd under the slug of its label.
func (s *Server) AddCommand(cmd domain.Command) error {
	name := Slug(cmd.Label)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commands[name]; ok {
		return fmt.Errorf("command %q already registered", cmd.Label)
	}
	s.commands[name] = cmd
	return nil
}

// RemoveCommand unregisters the command with the given label.
func (s *Server) RemoveCommand(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commands, Slug(label))
}

// Slug turns a command label into its URL path segment.
func Slug(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "-")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	cmds := make([]map[string]string, 0, len(s.commands))
	for name, cmd := range s.commands {
		cmds = append(cmds, map[string]string{"name": name, "label": cmd.Label, "hotkey": cmd.Hotkey})
	}
	s.mu.RUnlock()

	sort.Slice(cmds, func(i, j int) bool { return cmds[i]["name"] < cmds[j]["name"] })
	writeJSON(w, http.StatusOK, map[string]any{"commands": cmds})
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.RLock()
	cmd, ok := s.commands[name]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", fmt.Sprintf("unknown command %q", name))
		return
	}

	var req struct {
		BlockUID string `json:"block_uid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BlockUID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "block_uid is required")
		return
	}

	s.logger.Info("running command", "command", cmd.Label, "uid", req.BlockUID)

	if err := cmd.Run(r.Context(), req.BlockUID); err != nil {
		status, errType := errorStatus(err)
		writeError(w, status, errType, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "block_uid": req.BlockUID})
}

func (s *Server) handleExtractTagged(w http.ResponseWriter, r *http.Request) {
	report, err := s.extractor.ExtractTagged(r.Context())
	if err != nil {
		s.logger.Error("tagged extraction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to query tagged blocks")
		return
	}

	results := make([]map[string]any, len(report.Results))
	for i, res := range report.Results {
		item := map[string]any{"uid": res.UID, "ok": res.Err == nil}
		if res.Err != nil {
			item["error"] = res.Err.Error()
		}
		results[i] = item
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "failed": report.Failed()})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "NotImplemented", "block browsing requires the store host")
		return
	}

	block, err := s.store.Block(r.Context(), r.PathValue("uid"))
	if err != nil {
		status, errType := errorStatus(err)
		writeError(w, status, errType, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toBlockResponse(block))
}

func (s *Server) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "NotImplemented", "block creation requires the store host")
		return
	}

	var req struct {
		ParentUID string `json:"parent_uid"`
		String    string `json:"string"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON body")
		return
	}

	uid, err := s.store.CreateBlock(r.Context(), req.ParentUID, domain.OrderLast, req.String, "")
	if err != nil {
		status, errType := errorStatus(err)
		writeError(w, status, errType, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"uid": uid})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "NotImplemented", "settings require the store host")
		return
	}

	settings, err := s.store.Settings(r.Context())
	if err != nil {
		s.logger.Error("failed to read settings", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, settings.Map())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "NotImplemented", "settings require the store host")
		return
	}

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be a JSON object of strings")
		return
	}
	for k, v := range values {
		if err := domain.ValidateSetting(k, v); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
	}
	for k, v := range values {
		if err := s.store.SetSetting(r.Context(), k, v); err != nil {
			s.logger.Error("failed to store setting", "key", k, "error", err)
			writeError(w, http.StatusInternalServerError, "InternalError", "failed to store settings")
			return
		}
	}

	s.handleGetSettings(w, r)
}

type blockResponse struct {
	UID      string          `json:"uid"`
	String   string          `json:"string"`
	Pending  bool            `json:"pending,omitempty"`
	Children []blockResponse `json:"children,omitempty"`
}

func toBlockResponse(b *domain.Block) blockResponse {
	resp := blockResponse{UID: b.UID, String: b.String, Pending: b.Pending}
	for _, child := range b.Children {
		resp.Children = append(resp.Children, toBlockResponse(child))
	}
	return resp
}

// errorStatus maps extraction errors to an HTTP status and XRPC-style error name.
func errorStatus(err error) (int, string) {
	var rfe *domain.RemoteFetchError
	switch {
	case errors.Is(err, domain.ErrBlockNotFound):
		return http.StatusNotFound, "BlockNotFound"
	case errors.Is(err, domain.ErrInvalidURLFormat), errors.Is(err, domain.ErrNoURL):
		return http.StatusBadRequest, "InvalidUrl"
	case errors.Is(err, domain.ErrHandleResolutionFailed):
		return http.StatusBadGateway, "HandleResolutionFailed"
	case errors.As(err, &rfe):
		return http.StatusBadGateway, "RemoteFetchError"
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "MalformedResponse"
	case errors.Is(err, domain.ErrEmptyThread):
		return http.StatusBadGateway, "EmptyThread"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
