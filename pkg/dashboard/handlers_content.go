package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tradeup/x-engager/internal/core/domain"
)

type generateContentRequest struct {
	Topic string `json:"topic" validate:"required"`
}

func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req generateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	post, err := s.gen.GeneratePost(r.Context(), req.Topic)
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"post":    post,
	})
}

func (s *Server) handleFetchTweets(w http.ResponseWriter, r *http.Request) {
	tweets, err := s.tweets.FetchTweets(r.Context())
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	if tweets == nil {
		tweets = []domain.SourceTweet{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tweets":  tweets,
		"count":   len(tweets),
	})
}

type generateReplyRequest struct {
	TweetID string `json:"tweetId"`
	Author  string `json:"author"`
	Text    string `json:"text" validate:"required"`
	URL     string `json:"url"`
}

func (s *Server) handleGenerateReply(w http.ResponseWriter, r *http.Request) {
	var req generateReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	reply, err := s.gen.GenerateReply(r.Context(), domain.SourceTweet{
		ID:     req.TweetID,
		Author: req.Author,
		Text:   req.Text,
		URL:    req.URL,
	})
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reply":   reply,
	})
}

type postToTwitterRequest struct {
	Content string `json:"content" validate:"required,max=280"`
}

func (s *Server) handlePostToTwitter(w http.ResponseWriter, r *http.Request) {
	var req postToTwitterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.poster.PostTweet(r.Context(), req.Content)
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"tweet_id":  res.TweetID,
		"tweet_url": res.URL,
	})
}

type postReplyRequest struct {
	Content string `json:"content" validate:"required,max=280"`
	TweetID string `json:"tweetId" validate:"required"`
}

// handlePostReply publishes a reply and records the source tweet so reply
// jobs never answer it twice.
func (s *Server) handlePostReply(w http.ResponseWriter, r *http.Request) {
	var req postReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.validate.StructCtx(r.Context(), req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.poster.PostReply(r.Context(), req.Content, req.TweetID)
	if err != nil {
		s.writeError(w, s.errorStatus(err), err)
		return
	}
	if err := s.repo.MarkTweetReplied(r.Context(), req.TweetID); err != nil {
		s.logger.Error("failed to mark tweet replied", "tweet_id", req.TweetID, "error", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"tweet_id":  res.TweetID,
		"tweet_url": res.URL,
	})
}
