// Package httpx holds the response envelope and request helpers shared by
// the admin API handlers.
package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
)

// Envelope is the body of every response.
type Envelope struct {
	Success    bool                   `json:"success"`
	Data       any                    `json:"data,omitempty"`
	Pagination *Pagination            `json:"pagination,omitempty"`
	Code       apperrors.ErrorCode    `json:"code,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Pagination is the page metadata of a listing response.
type Pagination struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// OK writes data with status 200.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, data)
}

// Created writes data with status 201.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusCreated, data)
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Success: true, Data: data})
}

// Paged writes the items of p as data and its metadata as pagination.
func Paged[T any](w http.ResponseWriter, r *http.Request, p model.Page[T]) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Envelope{
		Success: true,
		Data:    p.Items,
		Pagination: &Pagination{
			Page:        p.Page,
			PageSize:    p.PageSize,
			Total:       p.Total,
			TotalPages:  p.TotalPages,
			HasNextPage: p.HasNextPage,
			HasPrevPage: p.HasPrevPage,
		},
	})
}

// Error writes err as an error envelope. Server errors are logged in full and
// answered with a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)

	resp := Envelope{
		Code:    code,
		Message: apperrors.PublicMessage(err),
	}
	if status < http.StatusInternalServerError {
		resp.Details = apperrors.GetDetails(err)
	} else {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"code", code,
			"err", err)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// Decode reads a JSON body into v. An empty or malformed body is invalid input.
func Decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("body", "request body is empty")
		}
		return apperrors.InvalidInput("body", err.Error())
	}
	return nil
}

// QueryInt parses an integer query parameter. Missing values yield 0.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(name, "must be an integer")
	}
	return v, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.InvalidInput(name, "must be true or false")
	}
	return &v, nil
}

// QueryString returns the trimmed value of a query parameter.
func QueryString(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// PageParams reads the page and pageSize query parameters.
func PageParams(r *http.Request) (page, pageSize int, err error) {
	if page, err = QueryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if pageSize, err = QueryInt(r, "pageSize"); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

// NotFound answers unmatched routes with the error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, apperrors.Newf(apperrors.ErrCodeNotFound, "route %s %s not found", r.Method, r.URL.Path))
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusMethodNotAllowed)
	render.JSON(w, r, Envelope{
		Code:    apperrors.ErrCodeInvalidInput,
		Message: "method " + r.Method + " not allowed",
	})
}
