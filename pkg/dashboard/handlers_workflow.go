package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/workflow"
)

type createBatchRequest struct {
	Type     domain.ContentType `json:"type" validate:"required,oneof=post reply"`
	Settings domain.JobSettings `json:"settings"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		batch workflow.Batch
		err   error
	)
	switch req.Type {
	case domain.ContentTypePost:
		batch, err = s.workflow.GeneratePostBatch(r.Context(), req.Settings)
	case domain.ContentTypeReply:
		batch, err = s.workflow.GenerateReplyBatch(r.Context(), req.Settings)
	}
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"batch":   batch,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.workflow.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"batch":   batch,
	})
}

func (s *Server) handleCloseBatch(w http.ResponseWriter, r *http.Request) {
	s.workflow.Close(chi.URLParam(r, "id"))
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleApproveItem(w http.ResponseWriter, r *http.Request) {
	batch, err := s.workflow.Approve(chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"batch":   batch,
	})
}

func (s *Server) handleRegenerateItem(w http.ResponseWriter, r *http.Request) {
	batch, err := s.workflow.Regenerate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"batch":   batch,
	})
}

func (s *Server) handleRegenerateDifferentItem(w http.ResponseWriter, r *http.Request) {
	batch, err := s.workflow.RegenerateDifferent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"batch":   batch,
	})
}

type commitBatchRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCommitBatch(w http.ResponseWriter, r *http.Request) {
	var req commitBatchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}

	result, err := s.workflow.Commit(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

func (s *Server) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	jobs := s.view.Jobs()
	if jobs == nil {
		jobs = []domain.BotJob{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"status": s.view.Status(),
		"error":  s.view.Error(),
	})
}

func (s *Server) handleRegistryRefresh(w http.ResponseWriter, r *http.Request) {
	s.view.Refresh(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
