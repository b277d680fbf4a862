package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/pkg/models"
)

// Problem type URIs for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound      = "https://kpal.dev/problems/not-found"
	ProblemTypeBadRequest    = "https://kpal.dev/problems/bad-request"
	ProblemTypeUnprocessable = "https://kpal.dev/problems/unprocessable-entity"
	ProblemTypeInternal      = "https://kpal.dev/problems/internal-error"
	ProblemTypeRateLimited   = "https://kpal.dev/problems/rate-limited"
)

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p models.APIProblem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteError translates an error into the appropriate problem response,
// using kerrors.Reason when err carries one and falling back to 500.
func WriteError(w http.ResponseWriter, err error, instance string) {
	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		WriteProblem(w, models.APIProblem{
			Type:     problemType(kerr.Reason),
			Title:    title(kerr.Reason),
			Status:   kerr.Reason.HTTPStatus(),
			Detail:   kerr.Message,
			Instance: instance,
		})
		return
	}
	InternalError(w, err.Error(), instance)
}

func problemType(r kerrors.Reason) string {
	switch r.HTTPStatus() {
	case http.StatusNotFound:
		return ProblemTypeNotFound
	case http.StatusUnprocessableEntity:
		return ProblemTypeUnprocessable
	default:
		return ProblemTypeInternal
	}
}

func title(r kerrors.Reason) string {
	switch r.HTTPStatus() {
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusUnprocessableEntity:
		return "Unprocessable Entity"
	default:
		return "Internal Server Error"
	}
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, models.APIProblem{
		Type:     ProblemTypeBadRequest,
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
	})
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, models.APIProblem{
		Type:     ProblemTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: instance,
	})
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, models.APIProblem{
		Type:     ProblemTypeRateLimited,
		Title:    "Too Many Requests",
		Status:   http.StatusTooManyRequests,
		Detail:   detail,
		Instance: instance,
	})
}
