package apperrors

import (
	"flulance/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// GinErrorHandler writes AppErrors as JSON.
type GinErrorHandler struct {
	Debug bool
}

var defaultHandler = &GinErrorHandler{Debug: false}

// SetDebug toggles exposure of internal error messages. Called once at startup.
func SetDebug(debug bool) {
	defaultHandler = &GinErrorHandler{Debug: debug}
}

func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}

	if appErr.HTTPCode >= 500 {
		logger.CtxError(c.Request.Context(), "server error",
			"code", appErr.Code,
			"domain", appErr.Domain,
			"error", appErr.Unwrap(),
		)
		if !h.Debug && appErr.Code == CodeInternalError {
			appErr = New(CodeInternalError, appErr.Domain, "Internal server error", appErr.HTTPCode)
		}
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}

// HandleError writes err with the process-wide handler.
func HandleError(c *gin.Context, err error) {
	defaultHandler.HandleGinError(c, err)
}

// AsAppError tries to extract an *AppError from the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
