package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/docproc/pkg/services"
)

// errorResponse is the uniform failure body: a short machine-readable tag,
// never a stack trace.
type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// abortWithServiceError maps service-layer errors to HTTP responses.
func abortWithServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Status: "failed", Error: validErr.Error()})
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Status: "failed", Error: "not_found"})
		return
	}
	if errors.Is(err, services.ErrIllegalState) {
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Status: "failed", Error: "illegal_state"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Status: "failed", Error: "internal_error"})
}
