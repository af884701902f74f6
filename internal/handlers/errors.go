package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sadiqgoni/GreenCycle/internal/database"
	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

type errorMapping struct {
	target error
	status int
	kind   string
	code   string
}

// Checked in order. Validation comes first so FieldError never falls through.
var errorMappings = []errorMapping{
	{lifecycle.ErrValidation, http.StatusBadRequest, "validation_error", "VALIDATION_ERROR"},
	{lifecycle.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "INVALID_TRANSITION"},
	{lifecycle.ErrReferenceNotFound, http.StatusNotFound, "reference_not_found", "REFERENCE_NOT_FOUND"},
	{services.ErrRequestNotFound, http.StatusNotFound, "not_found", "REQUEST_NOT_FOUND"},
	{services.ErrCompanyNotFound, http.StatusNotFound, "not_found", "COMPANY_NOT_FOUND"},
	{services.ErrCompanyExists, http.StatusConflict, "company_exists", "COMPANY_EXISTS"},
	{services.ErrCompanyNotActive, http.StatusForbidden, "not_verified", "ACCOUNT_NOT_VERIFIED"},
	{services.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update", "CONCURRENT_UPDATE"},
	{services.ErrRecordLocked, http.StatusLocked, "record_locked", "RECORD_LOCKED"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden", "INSUFFICIENT_PERMISSIONS"},
	{database.ErrEmailTaken, http.StatusConflict, "email_taken", "EMAIL_TAKEN"},
	{services.ErrInvalidCredential, http.StatusUnauthorized, "invalid_credentials", "INVALID_CREDENTIALS"},
	{services.ErrAccountDisabled, http.StatusForbidden, "account_disabled", "ACCOUNT_DISABLED"},
	{services.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "INVALID_TOKEN"},
	{services.ErrUnknownJob, http.StatusNotFound, "not_found", "UNKNOWN_JOB"},
}

// respondError maps service and lifecycle errors onto HTTP responses.
// Anything unrecognised is logged and reported as a 500 without detail.
func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	var rateLimitErr *services.RateLimitError
	if errors.As(err, &rateLimitErr) {
		retry := int(math.Ceil(time.Until(rateLimitErr.RetryAfter).Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "rate_limited",
			Message: rateLimitErr.Message,
			Code:    "RATE_LIMITED",
		})
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		resp := ErrorResponse{Error: m.kind, Message: err.Error(), Code: m.code}

		var lerr *lifecycle.Error
		var ferr *services.FieldError
		switch {
		case errors.As(err, &lerr):
			resp.Field = lerr.Field
			resp.Message = lerr.Reason
		case errors.As(err, &ferr):
			resp.Field = ferr.Field
			resp.Message = ferr.Reason
		}

		c.JSON(m.status, resp)
		return
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
	})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request body: " + err.Error(),
		Code:    "VALIDATION_ERROR",
	})
}

func invalidID(c *gin.Context, name string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid " + name,
		Code:    "VALIDATION_ERROR",
		Field:   name,
	})
}
