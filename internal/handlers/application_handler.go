package handlers

import (
	"net/http"

	"flulance/internal/auth"
	"flulance/internal/middleware"
	"flulance/internal/services"
	"flulance/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	*BaseHandler
	applicationService services.ApplicationService
}

func NewApplicationHandler(base *BaseHandler, applicationService services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		BaseHandler:        base,
		applicationService: applicationService,
	}
}

func (h *ApplicationHandler) RegisterRoutes(r *gin.RouterGroup) {
	protected := r.Group("", h.requireAuth)
	{
		protected.POST("/jobs/:id/applications", middleware.RequirePermission(auth.PermApplicationsWrite), h.Apply)
		protected.GET("/jobs/:id/applications", middleware.RequirePermission(auth.PermApplicationsDecide), h.ListJobApplications)
		protected.GET("/me/applications", h.ListMyApplications)

		decide := protected.Group("/applications", middleware.RequirePermission(auth.PermApplicationsDecide))
		decide.POST("/:id/accept", h.Accept)
		decide.POST("/:id/reject", h.Reject)
	}
}

func (h *ApplicationHandler) Apply(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	// The cover message is optional, so is the body.
	var req dto.ApplyRequest
	if c.Request.ContentLength != 0 && !h.BindAndValidate_JSON(c, &req) {
		return
	}

	app, err := h.applicationService.Apply(h.GetDB(c), userID, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (h *ApplicationHandler) Accept(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	res, err := h.applicationService.Accept(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ApplicationHandler) Reject(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	app, err := h.applicationService.Reject(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) ListJobApplications(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	list, err := h.applicationService.ListJobApplications(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ApplicationHandler) ListMyApplications(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	page, pageSize := ParsePagination(c)
	list, err := h.applicationService.ListMyApplications(h.GetDB(c), userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
