package httpapi

import (
	"errors"
	"net/http"
	"sort"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

type fieldError struct {
	Field string `json:"field"`
	Code  string `json:"code"`
}

type errorPayload struct {
	Type    string       `json:"type"`
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var errInvalidRequest = errors.New("invalid request")

// errorHandlingMiddleware renders the last error attached with c.Error,
// unless the handler already wrote a response.
func errorHandlingMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "err", lastErr.Err)
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func abortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		fields := make([]fieldError, 0, len(verr.Fields))
		for f, code := range verr.Fields {
			fields = append(fields, fieldError{Field: f, Code: code})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: "validation error", Errors: fields}
	}

	switch {
	case errors.Is(err, errInvalidRequest), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, common.ErrNumberTaken), errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	case errors.Is(err, common.ErrBackendUnconfigured):
		return http.StatusConflict, errorPayload{Type: "backend_unconfigured", Message: "no storage backend is configured"}
	case errors.Is(err, common.ErrConnectivityCheck):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "connectivity_check_failed",
			Message: "Failed to connect to WebDAV with these credentials.",
		}
	case errors.Is(err, common.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "backend_unavailable", Message: "storage backend unavailable"}
	}
	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}
