package web

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is the JSON body of every failed API call.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newConflictError(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: "CONFLICT", Message: message}
}

func newUnavailableError(message string) *APIError {
	return &APIError{Status: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE", Message: message}
}

func newInternalError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// errorHandler renders APIError and echo.HTTPError values as JSON.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{Status: e.Code, Code: "HTTP_ERROR", Message: fmt.Sprintf("%v", e.Message)}
	default:
		apiErr = newInternalError("unexpected error", err)
	}

	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		log.Printf("web: write error response: %v", err)
	}
}
