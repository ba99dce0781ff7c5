package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tutormula/internal/logger/sl"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

// Response is the error envelope every failed request returns
type Response struct {
	Error *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = "VALIDATION_FAILED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "REQUEST_FAILED"
)

func errorResponse(code, msg string) Response {
	return Response{Error: &ResponseError{Code: code, Message: msg}}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse(code, msg))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		validation utils.ValidationError
		notFound   *service.NotFoundError
		authz      *service.AuthorizationError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, r, http.StatusBadRequest, CodeValidation, validation.Error())
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, CodeNotFound, notFound.Error())
	case errors.As(err, &authz):
		writeError(w, r, http.StatusForbidden, CodeForbidden, authz.Error())
	default:
		log.Error("request failed", sl.Err(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// pathID reads a positive integer URL parameter
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}
