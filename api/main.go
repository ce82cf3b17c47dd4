package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sizam/nti-agent/backend/internal/agent"
	"github.com/sizam/nti-agent/backend/internal/config"
	"github.com/sizam/nti-agent/backend/internal/logger"
	"github.com/sizam/nti-agent/backend/internal/models"
	"github.com/sizam/nti-agent/backend/internal/openai"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	client := openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, log)

	srv := &server{
		log:   log,
		cfg:   cfg,
		agent: agent.New(log, cfg, client),
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Post("/api/search", srv.handleSearch)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// the pipeline may run two sequential provider calls
		WriteTimeout: cfg.DiscoveryTimeout + 2*cfg.SearchTimeout + 15*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type searchRunner interface {
	Run(ctx context.Context, req models.SearchRequest) (models.SearchResult, error)
}

type server struct {
	log   *slog.Logger
	cfg   *config.API
	agent searchRunner
}

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse struct {
	RequestID string   `json:"requestId"`
	Answer    string   `json:"answer"`
	Notice    string   `json:"notice,omitempty"`
	Domains   []string `json:"domains,omitempty"`
	Model     string   `json:"model"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := s.log.With(slog.String("request_id", requestID))

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	budget := s.cfg.DiscoveryTimeout + 2*s.cfg.SearchTimeout + 10*time.Second
	ctx, cancel := context.WithTimeout(r.Context(), budget)
	defer cancel()

	started := time.Now()
	result, err := s.agent.Run(ctx, req)
	if err != nil {
		log.Error("search failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	log.Info("search completed",
		slog.String("scenario", string(req.Scenario)),
		slog.String("model", result.Model),
		slog.Int("domains", len(result.Domains)),
		slog.Duration("took", time.Since(started)),
	)

	writeJSON(w, http.StatusOK, searchResponse{
		RequestID: requestID,
		Answer:    result.Answer,
		Notice:    result.Notice,
		Domains:   result.Domains,
		Model:     result.Model,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
