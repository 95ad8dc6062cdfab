// Package dashboard exposes the engager over HTTP: the bot control surface,
// the content approval workflow and the read endpoints the dashboard panels
// poll.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
	"github.com/tradeup/x-engager/internal/core/services"
	"github.com/tradeup/x-engager/internal/registry"
	"github.com/tradeup/x-engager/internal/workflow"
)

type Server struct {
	logger   *slog.Logger
	manager  *services.Manager
	workflow *workflow.Service
	view     *registry.View
	repo     ports.Repository
	gen      ports.Generator
	poster   ports.Poster
	tweets   ports.TweetSource
	validate *validator.Validate

	httpServer *http.Server
}

func NewServer(addr string, logger *slog.Logger, manager *services.Manager, wf *workflow.Service, view *registry.View, repo ports.Repository, gen ports.Generator, poster ports.Poster, tweets ports.TweetSource) *Server {
	s := &Server{
		logger:   logger,
		manager:  manager,
		workflow: wf,
		view:     view,
		repo:     repo,
		gen:      gen,
		poster:   poster,
		tweets:   tweets,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/bot-status", s.handleBotStatus)

		r.Post("/bot-job/create", s.handleCreateJob)
		r.Post("/bot-job/create-posting-job", s.handleCreatePostingJob)
		r.Post("/bot-job/create-reply-job", s.handleCreateReplyJob)
		r.Route("/bot-job/{id}", func(r chi.Router) {
			r.Post("/start", s.handleStartJob)
			r.Post("/stop", s.handleStopJob)
			r.Post("/pause", s.handlePauseJob)
			r.Post("/rename", s.handleRenameJob)
		})

		r.Post("/generate-content", s.handleGenerateContent)
		r.Get("/fetch-tweets-from-sheets", s.handleFetchTweets)
		r.Post("/generate-reply", s.handleGenerateReply)
		r.Post("/post-to-twitter", s.handlePostToTwitter)
		r.Post("/post-reply-with-tracking", s.handlePostReply)

		r.Get("/metrics", s.handleMetrics)
		r.Get("/posts", s.handlePosts)
		r.Get("/topics", s.handleTopics)
		r.Get("/engagement", s.handleEngagement)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleSaveSettings)

		r.Route("/workflow/batches", func(r chi.Router) {
			r.Post("/", s.handleCreateBatch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBatch)
				r.Delete("/", s.handleCloseBatch)
				r.Post("/commit", s.handleCommitBatch)
				r.Route("/items/{itemID}", func(r chi.Router) {
					r.Post("/approve", s.handleApproveItem)
					r.Post("/regenerate", s.handleRegenerateItem)
					r.Post("/regenerate-different", s.handleRegenerateDifferentItem)
				})
			})
		})

		r.Get("/registry", s.handleRegistry)
		r.Post("/registry/refresh", s.handleRegistryRefresh)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"service": "tradeup-x-engager",
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError answers command endpoints with the {success:false, error} shape.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func (s *Server) errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrBatchNotFound),
		errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrBatchCommitted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNothingApproved),
		errors.Is(err, domain.ErrNoTopics),
		errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrNoTweets):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
