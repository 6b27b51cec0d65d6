package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns a short id that ties a response to its log line.
func generateCorrelationID() string {
	return uuid.NewString()[:8]
}

// respondError logs and writes an error response. Server errors log at
// warn, client errors at debug.
func (s *Server) respondError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	attrs := []any{
		"correlation_id", resp.CorrelationID,
		"message", message,
		"code", code,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"ip", c.RealIP(),
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	if code >= http.StatusInternalServerError {
		s.logger.Warn("request failed", attrs...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}

	return c.JSON(code, resp)
}

// httpErrorHandler renders errors returned from handlers and middleware
// in the ErrorResponse shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
		if he.Internal == nil {
			err = nil
		}
	}

	if c.Request().Method == http.MethodHead {
		if herr := c.NoContent(code); herr != nil {
			s.logger.Debug("failed to write error response", "error", herr)
		}
		return
	}
	if rerr := s.respondError(c, err, message, code); rerr != nil {
		s.logger.Debug("failed to write error response", "error", rerr)
	}
}
