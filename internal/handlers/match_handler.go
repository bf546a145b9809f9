package handlers

import (
	"net/http"

	"flulance/internal/services"
	"flulance/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	*BaseHandler
	matchService services.MatchService
}

func NewMatchHandler(base *BaseHandler, matchService services.MatchService) *MatchHandler {
	return &MatchHandler{
		BaseHandler:  base,
		matchService: matchService,
	}
}

func (h *MatchHandler) RegisterRoutes(r *gin.RouterGroup) {
	matches := r.Group("/matches", h.requireAuth)
	{
		matches.GET("", h.ListMatches)
		matches.GET("/:id", h.GetMatch)
		matches.POST("/:id/complete", h.Complete)
	}
}

func (h *MatchHandler) ListMatches(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var criteria dto.MatchCriteria
	if !h.BindAndValidate_Query(c, &criteria) {
		return
	}

	list, err := h.matchService.ListMatches(h.GetDB(c), userID, criteria)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MatchHandler) GetMatch(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	match, err := h.matchService.GetMatch(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

// Complete closes the match. Either participant may call it once.
func (h *MatchHandler) Complete(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	match, err := h.matchService.Complete(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}
