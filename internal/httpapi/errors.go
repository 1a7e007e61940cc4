package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"orderstats/internal/aggregate"
	"orderstats/internal/model"
	"orderstats/internal/selector"
	"orderstats/internal/service"
	"orderstats/internal/source"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError is one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newAPIError(status int, code string, err error) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: err.Error()}
}

// errorFor maps a pipeline error to its HTTP form.
func errorFor(err error) *APIError {
	var (
		apiErr *APIError
		tooBig *http.MaxBytesError
		sel    *selector.SelectionError
		verrs  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &tooBig):
		return &APIError{
			StatusCode: http.StatusRequestEntityTooLarge,
			ErrorCode:  "PAYLOAD_TOO_LARGE",
			Message:    fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit),
		}
	case errors.As(err, &verrs):
		details := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, ValidationError{Field: fe.Field(), Message: fe.Tag()})
		}
		return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "VALIDATION_ERROR", Message: "request validation failed", Details: details}
	case errors.As(err, &sel):
		e := newAPIError(http.StatusUnprocessableEntity, "TOO_FEW_DAYS", err)
		e.Details = map[string]interface{}{"strategy": sel.Strategy, "need": sel.Need, "have": sel.Have}
		return e
	case errors.Is(err, model.ErrUnknownDialect):
		return newAPIError(http.StatusBadRequest, "UNKNOWN_DIALECT", err)
	case errors.Is(err, source.ErrDialectUndetected):
		return newAPIError(http.StatusUnprocessableEntity, "DIALECT_UNDETECTED", err)
	case errors.Is(err, service.ErrInvalidDay):
		return newAPIError(http.StatusBadRequest, "BAD_DAY", err)
	case errors.Is(err, selector.ErrUnknownDay):
		return newAPIError(http.StatusBadRequest, "UNKNOWN_DAY", err)
	case errors.Is(err, selector.ErrUnknownStrategy):
		return newAPIError(http.StatusBadRequest, "UNKNOWN_STRATEGY", err)
	case errors.Is(err, aggregate.ErrBadClock), errors.Is(err, aggregate.ErrBadWindow):
		return newAPIError(http.StatusBadRequest, "BAD_WINDOW", err)
	case errors.Is(err, source.ErrEmpty), errors.Is(err, source.ErrMalformed), errors.Is(err, source.ErrUnknownFormat):
		return newAPIError(http.StatusBadRequest, "BAD_INPUT", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newAPIError(http.StatusGatewayTimeout, "TIMEOUT", err)
	}
	return &APIError{StatusCode: http.StatusInternalServerError, ErrorCode: "INTERNAL", Message: "internal error"}
}

func badRequest(format string, args ...interface{}) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "BAD_REQUEST", Message: fmt.Sprintf(format, args...)}
}
