package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/agentic-voice/backend/internal/config"
	"github.com/DeafMist/agentic-voice/backend/internal/elasticsearch"
	"github.com/DeafMist/agentic-voice/backend/internal/keywords"
	"github.com/DeafMist/agentic-voice/backend/internal/models"
	"github.com/DeafMist/agentic-voice/backend/internal/rag"
)

const (
	headerLLMStart    = "X-LLM-Start"
	headerLLMResponse = "X-LLM-Response"
)

type pipelineRunner interface {
	Run(ctx context.Context, messages []models.Message) (*rag.Result, error)
}

type archive interface {
	Health(ctx context.Context) error
	SearchDocuments(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
}

type server struct {
	log      *slog.Logger
	cfg      *config.API
	pipeline pipelineRunner
	archive  archive
	table    *keywords.Table
	model    string
}

type errorResponse struct {
	Error string `json:"error"`
}

type brainRequest struct {
	Messages []models.Message `json:"messages"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.AllowedOrigin))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.AccessKey != "" {
			r.Use(apiKeyAuth(s.cfg.AccessKey, s.log))
		}
		r.Post("/brain", s.handleBrain)
		r.Get("/keywords", s.handleKeywords)
		r.Get("/model", s.handleModel)
		r.Get("/retrievals", s.handleRetrievals)
	})

	return r
}

func (s *server) handleBrain(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("http_request_id", middleware.GetReqID(r.Context())))

	var req brainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("decode brain request", slog.Any("err", err))
		internalError(w)
		return
	}

	res, err := s.pipeline.Run(r.Context(), req.Messages)
	if err != nil {
		log.Error("run pipeline", slog.Any("err", err))
		internalError(w)
		return
	}
	defer res.Stream.Close()

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set(headerLLMStart, strconv.FormatInt(res.Start.UnixMilli(), 10))
	h.Set(headerLLMResponse, strconv.FormatInt(res.StreamCreated.UnixMilli(), 10))
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	written := 0
	for {
		chunk, err := res.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// headers are gone; the client sees a truncated body
			log.Error("completion stream interrupted", slog.Any("err", err), slog.String("request_id", res.RequestID))
			return
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			log.Warn("client went away", slog.Any("err", err), slog.String("request_id", res.RequestID))
			return
		}
		written += len(chunk)
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.Warn("flush response", slog.Any("err", err))
		}
	}

	log.Info("completion streamed",
		slog.String("request_id", res.RequestID),
		slog.Int("bytes", written),
		slog.Duration("total", time.Since(res.Start)),
	)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.archive.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "elasticsearch": "ok"})
}

func (s *server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.table.Categories()})
}

func (s *server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"model": s.model})
}

func (s *server) handleRetrievals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:      strings.TrimSpace(q.Get("q")),
		Categories: parseCSV(q.Get("categories")),
		RequestID:  strings.TrimSpace(q.Get("request_id")),
		From:       clampInt(q.Get("from"), 0, 10_000),
		Size:       clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:       strings.TrimSpace(q.Get("sort")),
		Start:      parseTime(q.Get("start")),
		End:        parseTime(q.Get("end")),
	}

	result, err := s.archive.SearchDocuments(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func internalError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
