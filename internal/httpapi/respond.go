// Package httpapi holds the JSON response envelope shared by every handler:
// {success, message?, data?, pagination?}.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wecure/medstore/internal/domain"
)

type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

func NewPagination(page, limit int, totalItems int64) *Pagination {
	totalPages := int((totalItems + int64(limit) - 1) / int64(limit))
	return &Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   totalItems,
		ItemsPerPage: limit,
	}
}

func WriteJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Success: true, Data: data})
}

func WriteMessage(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func WritePage(w http.ResponseWriter, data any, pagination *Pagination) {
	WriteJSON(w, http.StatusOK, Response{Success: true, Data: data, Pagination: pagination})
}

func WriteFailure(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{Success: false, Message: message})
}

// WriteError maps a domain error onto the envelope. Anything outside the
// taxonomy is logged and reported as a generic server failure so persistence
// detail never reaches the client.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	var invalidStateErr *domain.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		WriteFailure(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &notFoundErr):
		WriteFailure(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &invalidStateErr):
		WriteFailure(w, http.StatusBadRequest, invalidStateErr.Message)
	default:
		logger.Error(fallback, "error", err)
		WriteFailure(w, http.StatusInternalServerError, fallback)
	}
}
