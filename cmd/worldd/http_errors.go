package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/timson/worlddb/storage"
	"github.com/timson/worlddb/world"
)

type ErrResponse struct {
	HTTPStatusCode int    `json:"-"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusBadRequest,
		Status:         "Invalid request",
		Error:          errorText(err),
	}
}

func ErrNotFound(err error) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusNotFound,
		Status:         "Not found",
		Error:          errorText(err),
	}
}

func ErrConflict(err error) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusConflict,
		Status:         "Conflict",
		Error:          errorText(err),
	}
}

func ErrRequestTimeout() render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusRequestTimeout,
		Status:         "Request timed out",
	}
}

func ErrInternalServerError(err error) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusInternalServerError,
		Status:         "Internal Server Error",
		Error:          errorText(err),
	}
}

// errorRenderer maps library errors onto HTTP responses.
func errorRenderer(err error) render.Renderer {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, world.ErrUnknownCollection):
		return ErrNotFound(err)
	case errors.Is(err, world.ErrCollectionExists):
		return ErrConflict(err)
	case errors.Is(err, world.ErrMissingProperty), errors.Is(err, world.ErrTypeMismatch),
		errors.Is(err, world.ErrInvalidFeature), errors.Is(err, storage.ErrRecordTooLarge):
		return ErrInvalidRequest(err)
	default:
		return ErrInternalServerError(err)
	}
}
