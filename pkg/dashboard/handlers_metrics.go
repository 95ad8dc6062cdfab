package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/services"
)

const settingsKey = "bot_settings"

// The read endpoints below degrade to defaults instead of failing: a
// storage hiccup should dim a panel, not break the page.

// metricsView adds the preformatted counter strings the dashboard cards
// render verbatim.
type metricsView struct {
	domain.Metrics
	TotalLikesDisplay string `json:"totalLikesDisplay"`
	FollowersDisplay  string `json:"followersDisplay"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.repo.Metrics(r.Context())
	if err != nil {
		s.logger.Error("metrics query failed", "error", err)
		m = domain.Metrics{}
	}
	s.writeJSON(w, http.StatusOK, metricsView{
		Metrics:           m,
		TotalLikesDisplay: services.CompactCount(m.TotalLikes),
		FollowersDisplay:  services.CompactCount(m.Followers),
	})
}

type postView struct {
	domain.Post
	TimeAgo string `json:"timeAgo"`
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	posts, total, err := s.repo.ListPosts(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("posts query failed", "error", err)
		posts, total = nil, 0
	}

	now := time.Now()
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView{Post: p, TimeAgo: services.RelativeTime(p.Timestamp, now)})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"posts": views,
		"total": total,
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	trends, err := s.repo.TopicTrends(r.Context())
	if err != nil {
		s.logger.Error("topic trends query failed", "error", err)
	}
	if trends == nil {
		trends = []domain.TopicTrend{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"topics": trends})
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	points, err := s.repo.EngagementByDay(r.Context(), days)
	if err != nil {
		s.logger.Error("engagement query failed", "error", err)
	}
	if points == nil {
		points = []domain.EngagementPoint{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"engagement": points})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings := domain.DefaultSettings()

	raw, err := s.repo.GetSetting(r.Context(), settingsKey)
	if err != nil {
		s.logger.Error("settings query failed", "error", err)
	} else if raw != "" {
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			s.logger.Warn("stored settings unreadable, serving defaults", "error", err)
			settings = domain.DefaultSettings()
		}
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.repo.SaveSetting(r.Context(), settingsKey, string(raw)); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
