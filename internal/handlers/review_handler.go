package handlers

import (
	"net/http"

	"flulance/internal/auth"
	"flulance/internal/middleware"
	"flulance/internal/services"
	"flulance/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	*BaseHandler
	reviewService services.ReviewService
}

func NewReviewHandler(base *BaseHandler, reviewService services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		BaseHandler:   base,
		reviewService: reviewService,
	}
}

func (h *ReviewHandler) RegisterRoutes(r *gin.RouterGroup) {
	protected := r.Group("", h.requireAuth)
	{
		protected.POST("/matches/:id/reviews", middleware.RequirePermission(auth.PermReviewsWrite), h.CreateReview)
		protected.GET("/matches/:id/reviews", h.GetMatchReviews)
		protected.GET("/users/:id/reviews", h.GetUserReviews)
	}
}

func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateReviewRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	review, err := h.reviewService.CreateReview(h.GetDB(c), userID, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) GetMatchReviews(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	reviews, err := h.reviewService.GetMatchReviews(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (h *ReviewHandler) GetUserReviews(c *gin.Context) {
	page, pageSize := ParsePagination(c)
	res, err := h.reviewService.GetUserReviews(h.GetDB(c), c.Param("id"), page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
