package handlers

import (
	"net/http"

	"flulance/internal/services"
	"flulance/internal/services/dto"

	"github.com/gin-gonic/gin"
)

// ContactHandler manages where a user wants notifications pushed.
type ContactHandler struct {
	*BaseHandler
	contactService services.ContactService
}

func NewContactHandler(base *BaseHandler, contactService services.ContactService) *ContactHandler {
	return &ContactHandler{
		BaseHandler:    base,
		contactService: contactService,
	}
}

func (h *ContactHandler) RegisterRoutes(r *gin.RouterGroup) {
	me := r.Group("/me", h.requireAuth)
	{
		me.GET("/contact", h.GetContact)
		me.PUT("/contact", h.UpdateContact)
	}
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	contact, err := h.contactService.GetContact(h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateContactRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	contact, err := h.contactService.UpdateContact(h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}
