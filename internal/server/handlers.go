package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/recommend"
	"github.com/spigell/job-recommender/internal/relevance"
)

type relevanceQuery struct {
	ProfileID  string `form:"profile_id" binding:"required"`
	Page       int    `form:"page" binding:"gte=0"`
	PageSize   int    `form:"page_size" binding:"gte=0,lte=100"`
	Search     string `form:"search"`
	Province   string `form:"province"`
	CategoryID string `form:"category_id"`
}

type recommendationsQuery struct {
	ProfileID string `form:"profile_id" binding:"required"`
	TopK      int    `form:"top_k" binding:"gte=0,lte=50"`
}

func (s *Server) relevance(c *gin.Context) {
	var q relevanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	p, ok := s.lookupProfile(c, q.ProfileID)
	if !ok {
		return
	}

	page, err := s.svc.RelevancePage(c.Request.Context(), p, relevance.PageQuery{
		Search:     q.Search,
		Province:   q.Province,
		CategoryID: q.CategoryID,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) recommendations(c *gin.Context) {
	var q recommendationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	p, ok := s.lookupProfile(c, q.ProfileID)
	if !ok {
		return
	}
	s.respond(c, p, q.TopK)
}

// recommendInline accepts the profile in the body, for callers that own
// profile storage themselves.
func (s *Server) recommendInline(c *gin.Context) {
	var q struct {
		TopK int `form:"top_k" binding:"gte=0,lte=50"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("read profile: %w", err))
		return
	}
	p, issues, err := profile.Decode(body)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	for _, issue := range issues {
		s.logger.Info("profile field defaulted", zap.String("profile_id", issue.ProfileID), zap.String("field", issue.Field))
	}
	s.respond(c, p, q.TopK)
}

func (s *Server) respond(c *gin.Context, p *profile.UserProfile, topK int) {
	resp, err := s.svc.GetRecommendations(c.Request.Context(), p, topK)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) lookupProfile(c *gin.Context, id string) (*profile.UserProfile, bool) {
	if s.profiles == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("no profile store configured"))
		return nil, false
	}
	p, err := s.profiles.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		abort(c, http.StatusNotFound, err)
		return nil, false
	case err != nil:
		s.fail(c, err)
		return nil, false
	}
	return p, true
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, recommend.ErrInputData):
		abort(c, http.StatusBadRequest, err)
	case c.Request.Context().Err() != nil:
		abort(c, http.StatusRequestTimeout, err)
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abort(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}
