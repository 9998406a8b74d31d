package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/service/project"
)

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			TeamID      string               `json:"team_id"`
			Name        string               `json:"name"`
			Description string               `json:"description"`
			Status      domain.ProjectStatus `json:"status"`
			StartDate   *time.Time           `json:"start_date"`
			EndDate     *time.Time           `json:"end_date"`
			Color       string               `json:"color"`
			Position    int                  `json:"position"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if payload.TeamID == "" {
			writeError(w, http.StatusBadRequest, "team_id is required")
			return
		}
		created, err := r.project.Create(req.Context(), payload.TeamID, callerID, project.CreateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Status:      payload.Status,
			StartDate:   payload.StartDate,
			EndDate:     payload.EndDate,
			Color:       payload.Color,
			Position:    payload.Position,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, projectView(created))
	case http.MethodGet:
		teamID := req.URL.Query().Get("team_id")
		if teamID == "" {
			writeError(w, http.StatusBadRequest, "team_id query parameter required")
			return
		}
		projects, err := r.project.List(req.Context(), teamID, callerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(projects))
		for i := range projects {
			views = append(views, projectView(&projects[i]))
		}
		writeJSON(w, http.StatusOK, views)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	projectID := strings.TrimPrefix(req.URL.Path, "/projects/")
	if projectID == "" || strings.Contains(projectID, "/") {
		r.notFound(w)
		return
	}
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		detail, err := r.project.Get(req.Context(), projectID, callerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projectDetailView(detail))
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Name        *string               `json:"name"`
			Description *string               `json:"description"`
			Status      *domain.ProjectStatus `json:"status"`
			StartDate   *time.Time            `json:"start_date"`
			EndDate     *time.Time            `json:"end_date"`
			Color       *string               `json:"color"`
			Position    *int                  `json:"position"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := r.project.Update(req.Context(), projectID, callerID, project.UpdateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Status:      payload.Status,
			StartDate:   payload.StartDate,
			EndDate:     payload.EndDate,
			Color:       payload.Color,
			Position:    payload.Position,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projectView(updated))
	case http.MethodDelete:
		if err := r.project.Delete(req.Context(), projectID, callerID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}
