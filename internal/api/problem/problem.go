// Package problem writes RFC7807 problem responses and maps domain errors
// onto them.
package problem

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/engine"
)

// Detail represents RFC7807 problem details.
type Detail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Write sends a problem response.
func Write(w http.ResponseWriter, status int, title, detail string) {
	writeDetail(w, Detail{Title: title, Status: status, Detail: detail})
}

func writeDetail(w http.ResponseWriter, d Detail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}

// FromError picks the status for err by error kind.
func FromError(err error) Detail {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return Detail{Title: "Validation failed", Status: http.StatusBadRequest, Detail: ve.Reason, Field: ve.Field}
	case errors.Is(err, domain.ErrForbidden):
		return Detail{Title: "Forbidden", Status: http.StatusForbidden, Detail: err.Error()}
	case domain.IsNotFoundError(err):
		return Detail{Title: "Not found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, domain.ErrEmptyDraft):
		return Detail{Title: "Draft is empty", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, engine.ErrNoSummarizer):
		return Detail{Title: "Service unavailable", Status: http.StatusServiceUnavailable, Detail: err.Error()}
	case domain.IsExternalServiceError(err):
		return Detail{Title: "Upstream failure", Status: http.StatusBadGateway, Detail: err.Error()}
	}
	return Detail{Title: "Internal error", Status: http.StatusInternalServerError}
}

// Error logs unexpected failures and writes the mapped problem.
func Error(w http.ResponseWriter, err error) {
	d := FromError(err)
	if d.Status >= http.StatusInternalServerError {
		log.Printf("[API] %s: %v", d.Title, err)
	}
	writeDetail(w, d)
}
