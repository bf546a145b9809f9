package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"flulance/internal/logger"
	"flulance/internal/services"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	// multipartOverhead is the slack allowed on top of the attachment ceiling
	// for the text field and part headers.
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
	signedURLExpiry   = 15 * time.Minute
)

type ChatHandler struct {
	*BaseHandler
	chatService       services.ChatService
	maxAttachmentSize int64
}

func NewChatHandler(base *BaseHandler, chatService services.ChatService, maxAttachmentSize int64) *ChatHandler {
	return &ChatHandler{
		BaseHandler:       base,
		chatService:       chatService,
		maxAttachmentSize: maxAttachmentSize,
	}
}

func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	protected := r.Group("", h.requireAuth)
	{
		protected.GET("/matches/:id/messages", h.ListMessages)
		protected.POST("/matches/:id/messages", h.SendMessage)
		protected.POST("/matches/:id/messages/with-attachment", h.SendMessageWithAttachment)
		protected.POST("/matches/:id/read", h.MarkMatchRead)
		protected.PATCH("/messages/:id/read", h.MarkRead)
		protected.GET("/attachments/:id", h.DownloadAttachment)
		protected.GET("/attachments/:id/url", h.GetAttachmentURL)
	}
}

// ListMessages is the polling endpoint: oldest first, optionally after a
// known message id.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var query dto.MessageQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	list, err := h.chatService.ListMessages(h.GetDB(c), userID, c.Param("id"), query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), h.GetDB(c), userID, c.Param("id"), &req, nil)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// SendMessageWithAttachment takes multipart form fields "text" (optional) and
// "file" (optional, at most one). The body is capped before parsing so an
// oversized upload fails fast with 413.
func (h *ChatHandler) SendMessageWithAttachment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAttachmentSize+multipartOverhead)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperrors.HandleError(c, apperrors.ErrPayloadTooLarge(c.Request.ContentLength, h.maxAttachmentSize))
			return
		}
		apperrors.HandleError(c, apperrors.NewBadRequestError("Failed to parse multipart form: "+err.Error()))
		return
	}
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()

	var req dto.SendMessageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	var file *dto.AttachmentFile
	header, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid file part: "+err.Error()))
		return
	default:
		f, err := header.Open()
		if err != nil {
			h.HandleServiceError(c, err)
			return
		}
		defer f.Close()
		file = &dto.AttachmentFile{FileName: header.Filename, Size: header.Size, Content: f}
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), h.GetDB(c), userID, c.Param("id"), &req, file)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flags a message read for its recipient. Calls by the sender are
// accepted and change nothing.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	msg, err := h.chatService.MarkRead(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ChatHandler) MarkMatchRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	n, err := h.chatService.MarkMatchRead(h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UpdatedResponse{Updated: n})
}

func (h *ChatHandler) DownloadAttachment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	content, err := h.chatService.GetAttachment(c.Request.Context(), h.GetDB(c), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	defer content.Body.Close()

	disposition := "inline"
	if c.Query("download") == "true" {
		disposition = "attachment"
	}
	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType(disposition, map[string]string{"filename": content.FileName}),
		"Cache-Control":       "private, max-age=3600",
		"ETag":                strconv.Quote(c.Param("id")),
	}
	c.DataFromReader(http.StatusOK, content.Size, content.MimeType, content.Body, headers)
}

// GetAttachmentURL returns a short-lived direct link to the stored object.
func (h *ChatHandler) GetAttachmentURL(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	url, err := h.chatService.GetAttachmentURL(c.Request.Context(), h.GetDB(c), userID, c.Param("id"), signedURLExpiry)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	logger.CtxDebug(c.Request.Context(), "attachment url issued", "attachment_id", c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(signedURLExpiry.Seconds()),
	})
}
