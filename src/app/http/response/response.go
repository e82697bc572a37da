// Package response defines consistent HTTP response structures.
// All API responses should use these types for consistency.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"postcontest/src/core/domain"
)

// Success represents a successful response with data.
type Success struct {
	Data any `json:"data"`
}

// Error represents an error response.
type Error struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Field is the field that caused the error (for validation errors)
	Field string `json:"field,omitempty"`

	// RequestID is the request ID for debugging
	RequestID string `json:"request_id,omitempty"`
}

// Paginated represents a list response windowed by limit and offset.
type Paginated struct {
	Data any `json:"data"`
	// Returned is the length of this window, not the size of the whole list.
	Returned int `json:"returned"`
	Limit    int `json:"limit,omitempty"`
	Offset   int `json:"offset,omitempty"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Success{Data: data})
}

// Page sends a 200 response with one window of a list.
func Page(c *gin.Context, data any, returned, limit, offset int) {
	c.JSON(http.StatusOK, Paginated{Data: data, Returned: returned, Limit: limit, Offset: offset})
}

// Created sends a 201 response with the created resource.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Success{Data: data})
}

// BadRequest sends a 400 response.
func BadRequest(c *gin.Context, message string, requestID string) {
	c.JSON(http.StatusBadRequest, Error{
		Error: ErrorDetail{
			Code:      "BAD_REQUEST",
			Message:   message,
			RequestID: requestID,
		},
	})
}

// ValidationError sends a 400 response for validation failures.
func ValidationError(c *gin.Context, field, message, requestID string) {
	c.JSON(http.StatusBadRequest, Error{
		Error: ErrorDetail{
			Code:      "VALIDATION_ERROR",
			Message:   message,
			Field:     field,
			RequestID: requestID,
		},
	})
}

// NotFound sends a 404 response.
func NotFound(c *gin.Context, message, requestID string) {
	c.JSON(http.StatusNotFound, Error{
		Error: ErrorDetail{
			Code:      "NOT_FOUND",
			Message:   message,
			RequestID: requestID,
		},
	})
}

// Conflict sends a 409 response.
func Conflict(c *gin.Context, message, requestID string) {
	c.JSON(http.StatusConflict, Error{
		Error: ErrorDetail{
			Code:      "CONFLICT",
			Message:   message,
			RequestID: requestID,
		},
	})
}

// Forbidden sends a 403 response.
func Forbidden(c *gin.Context, message, requestID string) {
	c.JSON(http.StatusForbidden, Error{
		Error: ErrorDetail{
			Code:      "FORBIDDEN",
			Message:   message,
			RequestID: requestID,
		},
	})
}

// Unauthorized sends a 401 response.
func Unauthorized(c *gin.Context, message, requestID string) {
	c.JSON(http.StatusUnauthorized, Error{
		Error: ErrorDetail{
			Code:      "UNAUTHORIZED",
			Message:   message,
			RequestID: requestID,
		},
	})
}

// InternalError sends a 500 response.
func InternalError(c *gin.Context, requestID string) {
	c.JSON(http.StatusInternalServerError, Error{
		Error: ErrorDetail{
			Code:      "INTERNAL_ERROR",
			Message:   "An unexpected error occurred",
			RequestID: requestID,
		},
	})
}

// kindStatus maps engine error kinds to HTTP statuses. Kinds not listed
// fall through to their generic base.
var kindStatus = map[string]int{
	"ROUND_NOT_ACTIVE":           http.StatusConflict,
	"ROUND_NOT_ENDED":            http.StatusConflict,
	"ENTRY_CONFLICT":             http.StatusConflict,
	"PARTICIPANT_DISQUALIFIED":   http.StatusForbidden,
	"NOT_QUALIFIED":              http.StatusForbidden,
	"DUPLICATE_PAYMENT":          http.StatusConflict,
	"ALREADY_COMPLETED":          http.StatusConflict,
	"INVALID_TRANSITION":         http.StatusConflict,
	"COMPETITION_NOT_CONCLUDED":  http.StatusConflict,
	"RECONCILIATION_IN_PROGRESS": http.StatusLocked,
}

// FromDomainError converts a domain error to an appropriate HTTP response.
// This centralizes error handling and ensures consistent error responses.
func FromDomainError(c *gin.Context, err error, requestID string) {
	code := domain.KindOf(err)
	if status, ok := kindStatus[code]; ok {
		c.JSON(status, Error{
			Error: ErrorDetail{
				Code:      code,
				Message:   err.Error(),
				RequestID: requestID,
			},
		})
		return
	}

	switch {
	case domain.IsNotFound(err):
		NotFound(c, err.Error(), requestID)
	case domain.IsValidationError(err):
		// Try to extract field from domain error
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			ValidationError(c, domainErr.Field, domainErr.Message, requestID)
		} else {
			BadRequest(c, err.Error(), requestID)
		}
	case domain.IsConflict(err):
		Conflict(c, err.Error(), requestID)
	case domain.IsForbidden(err):
		Forbidden(c, err.Error(), requestID)
	case domain.IsUnauthorized(err):
		Unauthorized(c, err.Error(), requestID)
	default:
		InternalError(c, requestID)
	}
}
