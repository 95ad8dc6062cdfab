package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tradeup/x-engager/internal/core/domain"
)

// handleBotStatus never fails to defaults: a storage error still answers an
// empty stopped snapshot so the dashboard keeps rendering.
func (s *Server) handleBotStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.manager.BotStatus(r.Context())
	if err != nil {
		s.logger.Error("bot status failed", "error", err)
		status = domain.BotStatus{Jobs: []domain.BotJob{}}
	}
	if status.Jobs == nil {
		status.Jobs = []domain.BotJob{}
	}
	s.writeJSON(w, http.StatusOK, status)
}

type createJobRequest struct {
	Type     domain.JobType     `json:"type"`
	Name     string             `json:"name"`
	Settings domain.JobSettings `json:"settings"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Type != domain.JobTypePosting && req.Type != domain.JobTypeReplying {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown job type %q", req.Type))
		return
	}
	s.createJob(w, r, req)
}

func (s *Server) handleCreatePostingJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.Type = domain.JobTypePosting
	s.createJob(w, r, req)
}

func (s *Server) handleCreateReplyJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.Type = domain.JobTypeReplying
	s.createJob(w, r, req)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request, req createJobRequest) {
	if err := s.validate.StructCtx(r.Context(), req.Settings); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	job, err := s.manager.CreateJob(r.Context(), req.Type, strings.TrimSpace(req.Name), req.Settings)
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"job":     job,
	})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	s.jobCommand(w, r, s.manager.StartJob)
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	s.jobCommand(w, r, s.manager.StopJob)
}

func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	s.jobCommand(w, r, s.manager.PauseJob)
}

func (s *Server) handleRenameJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("name must not be empty"))
		return
	}

	id := domain.JobID(chi.URLParam(r, "id"))
	if err := s.manager.RenameJob(r.Context(), id, req.Name); err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) jobCommand(w http.ResponseWriter, r *http.Request, cmd func(ctx context.Context, id domain.JobID) error) {
	id := domain.JobID(chi.URLParam(r, "id"))
	if err := cmd(r.Context(), id); err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
