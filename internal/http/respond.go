package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
	"github.com/rafa761/task-management-api/internal/service/auth"
	"github.com/rafa761/task-management-api/internal/service/task"
	"github.com/rafa761/task-management-api/internal/service/team"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service and repository errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFromError(err), err.Error())
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, team.ErrNotInvited):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, team.ErrLastOwner),
		errors.Is(err, task.ErrBlocked),
		errors.Is(err, task.ErrDependencyCycle):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotMember),
		errors.Is(err, auth.ErrInactiveUser):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrInvalidArgument), errors.Is(err, task.ErrSelfDependency):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
