package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ppiankov/repotriage/internal/github"
	"github.com/ppiankov/repotriage/internal/history"
	"github.com/ppiankov/repotriage/internal/workflow"
)

// AnalyzeRunner runs one repository analysis. Satisfied by *workflow.Runner.
type AnalyzeRunner interface {
	Run(ctx context.Context, repoRef string) (*workflow.Result, error)
}

// RepoDirectory lists a user's repositories. Satisfied by *github.Client.
type RepoDirectory interface {
	ListUserRepos(ctx context.Context, username string) ([]github.Repo, error)
}

// Config holds API server configuration.
type Config struct {
	Listen   string // default ":8080"
	SpoolDir string // optional drop-in request directory
}

// Server exposes analysis over HTTP and, when a spool directory is
// configured, over drop-in request files.
type Server struct {
	cfg    Config
	runner AnalyzeRunner
	store  *history.Store
	repos  RepoDirectory

	mu   sync.Mutex
	srv  *http.Server
	addr string
}

// New creates an API server. The history store and repo directory may be nil.
func New(cfg Config, runner AnalyzeRunner, store *history.Store, repos RepoDirectory) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	return &Server{cfg: cfg, runner: runner, store: store, repos: repos}
}

// Start begins listening. Returns the actual address.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.Handler()}
	s.mu.Unlock()

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("api server error", "error", err)
		}
	}()

	slog.Info("api server started", "addr", s.addr)
	return s.addr, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Addr returns the listening address after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the route mux, also usable without Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /repos/{owner}", s.handleRepos)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type analyzeRequest struct {
	Repo string `json:"repo"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Repo == "" {
		writeError(w, http.StatusBadRequest, "repo is required")
		return
	}

	result, err := s.runner.Run(r.Context(), req.Repo)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []history.Run{})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var runs []history.Run
	var err error
	if repo := r.URL.Query().Get("repo"); repo != "" {
		runs, err = s.store.ForRepo(r.Context(), repo, limit)
	} else {
		runs, err = s.store.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRepos(w http.ResponseWriter, r *http.Request) {
	if s.repos == nil {
		writeError(w, http.StatusServiceUnavailable, "repository directory not configured")
		return
	}

	repos, err := s.repos.ListUserRepos(r.Context(), r.PathValue("owner"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if repos == nil {
		repos = []github.Repo{}
	}

	writeJSON(w, http.StatusOK, repos)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
