package apperrors

import (
	"net/http"
)

// =========================================================================
// Factories
// =========================================================================

// ErrInvalidStatus reports an operation that is not allowed in the entity's
// current lifecycle state. The current state goes into details so the client
// can resynchronize.
func ErrInvalidStatus(domain, message, currentStatus string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusConflict).
		WithDetails(map[string]string{"current_status": currentStatus})
}

// ErrPayloadTooLarge is returned when an upload exceeds the configured ceiling.
func ErrPayloadTooLarge(size, limit int64) *AppError {
	return New(CodeLimitExceeded, "upload", "File exceeds the maximum allowed size", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]int64{"size": size, "max_size": limit})
}

// ErrTransientStore wraps a storage backend failure. Safe to retry.
func ErrTransientStore(err error) *AppError {
	return Wrap(err, CodeExternalServiceError, "storage", "Attachment store unavailable, retry later", http.StatusServiceUnavailable).
		WithDetails(map[string]bool{"retryable": true})
}

// =========================================================================
// Predefined errors
// =========================================================================

var (
	ErrJobNotFound          = New(CodeNotFound, "job", "Job not found", http.StatusNotFound)
	ErrApplicationNotFound  = New(CodeNotFound, "application", "Application not found", http.StatusNotFound)
	ErrMatchNotFound        = New(CodeNotFound, "match", "Match not found", http.StatusNotFound)
	ErrMessageNotFound      = New(CodeNotFound, "chat", "Message not found", http.StatusNotFound)
	ErrAttachmentNotFound   = New(CodeNotFound, "chat", "Attachment not found", http.StatusNotFound)
	ErrNotificationNotFound = New(CodeNotFound, "notification", "Notification not found", http.StatusNotFound)
	ErrContactNotFound      = New(CodeNotFound, "contact", "Delivery contact not set", http.StatusNotFound)

	ErrNotJobOwner         = New(CodeForbidden, "job", "Only the job owner can perform this action", http.StatusForbidden)
	ErrNotMatchParticipant = New(CodeForbidden, "match", "Only match participants can perform this action", http.StatusForbidden)

	ErrDuplicateApplication = New(CodeAlreadyExists, "application", "An active application for this job already exists", http.StatusConflict)
	ErrDuplicateReview      = New(CodeAlreadyExists, "review", "You have already reviewed this match", http.StatusConflict)

	ErrOwnJobApplication  = New(CodeValidationFailed, "application", "You cannot apply to your own job", http.StatusBadRequest)
	ErrEmptyMessage       = New(CodeValidationFailed, "chat", "Message must contain text or an attachment", http.StatusBadRequest)
	ErrFileTypeNotAllowed = New(CodeValidationFailed, "upload", "File type is not allowed", http.StatusBadRequest)
)
