package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
	"github.com/rafa761/task-management-api/internal/service/task"
)

func (r *Router) handleTasks(w http.ResponseWriter, req *http.Request) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			TeamID         string              `json:"team_id"`
			ProjectID      string              `json:"project_id"`
			Title          string              `json:"title"`
			Description    string              `json:"description"`
			Priority       domain.TaskPriority `json:"priority"`
			DueDate        *time.Time          `json:"due_date"`
			Position       int                 `json:"position"`
			EstimatedHours *int                `json:"estimated_hours"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if payload.TeamID == "" {
			writeError(w, http.StatusBadRequest, "team_id is required")
			return
		}
		created, err := r.task.Create(req.Context(), payload.TeamID, callerID, task.CreateInput{
			Title:          payload.Title,
			Description:    payload.Description,
			ProjectID:      payload.ProjectID,
			Priority:       payload.Priority,
			DueDate:        payload.DueDate,
			Position:       payload.Position,
			EstimatedHours: payload.EstimatedHours,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, taskView(created))
	case http.MethodGet:
		teamID := req.URL.Query().Get("team_id")
		if teamID == "" {
			writeError(w, http.StatusBadRequest, "team_id query parameter required")
			return
		}
		limit, offset := parseListWindow(req)
		filter := repository.TaskFilter{
			TeamID:          teamID,
			ProjectID:       req.URL.Query().Get("project_id"),
			AssigneeID:      req.URL.Query().Get("assignee_id"),
			Status:          domain.TaskStatus(req.URL.Query().Get("status")),
			IncludeArchived: req.URL.Query().Get("archived") == "true",
			Limit:           limit,
			Offset:          offset,
		}
		tasks, err := r.task.List(req.Context(), callerID, filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(tasks))
		for i := range tasks {
			views = append(views, taskView(&tasks[i]))
		}
		writeJSON(w, http.StatusOK, views)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTaskSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/tasks/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 1 || parts[0] == "" {
		r.notFound(w)
		return
	}
	taskID := parts[0]
	switch {
	case len(parts) == 1:
		r.handleTaskByID(w, req, taskID)
	case len(parts) == 2 && parts[1] == "assignees":
		r.handleTaskAssignees(w, req, taskID)
	case len(parts) == 3 && parts[1] == "assignees":
		r.handleTaskAssigneeByID(w, req, taskID, parts[2])
	case len(parts) == 2 && parts[1] == "dependencies":
		r.handleTaskDependencies(w, req, taskID)
	case len(parts) == 3 && parts[1] == "dependencies":
		r.handleTaskDependencyByID(w, req, taskID, parts[2])
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTaskByID(w http.ResponseWriter, req *http.Request, taskID string) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		detail, err := r.task.Get(req.Context(), taskID, callerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, taskDetailView(detail))
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Title          *string              `json:"title"`
			Description    *string              `json:"description"`
			Status         *domain.TaskStatus   `json:"status"`
			Priority       *domain.TaskPriority `json:"priority"`
			DueDate        json.RawMessage      `json:"due_date"`
			ProjectID      *string              `json:"project_id"`
			Position       *int                 `json:"position"`
			EstimatedHours *int                 `json:"estimated_hours"`
			Archived       *bool                `json:"archived"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		input := task.UpdateInput{
			Title:          payload.Title,
			Description:    payload.Description,
			Status:         payload.Status,
			Priority:       payload.Priority,
			ProjectID:      payload.ProjectID,
			Position:       payload.Position,
			EstimatedHours: payload.EstimatedHours,
			Archived:       payload.Archived,
		}
		// An explicit null clears the due date; an absent field leaves it.
		if len(payload.DueDate) > 0 {
			if string(payload.DueDate) == "null" {
				input.ClearDueDate = true
			} else {
				var due time.Time
				if err := json.Unmarshal(payload.DueDate, &due); err != nil {
					writeError(w, http.StatusBadRequest, "invalid due_date")
					return
				}
				input.DueDate = &due
			}
		}
		detail, err := r.task.Update(req.Context(), taskID, callerID, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, taskDetailView(detail))
	case http.MethodDelete:
		if err := r.task.Delete(req.Context(), taskID, callerID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTaskAssignees(w http.ResponseWriter, req *http.Request, taskID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	assignment, err := r.task.Assign(req.Context(), taskID, callerID, payload.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"task_id":     assignment.TaskID,
		"assignee_id": assignment.AssigneeID,
		"assigned_by": assignment.AssignedBy,
		"assigned_at": assignment.AssignedAt.Format(time.RFC3339Nano),
	})
}

func (r *Router) handleTaskAssigneeByID(w http.ResponseWriter, req *http.Request, taskID, assigneeID string) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	if err := r.task.Unassign(req.Context(), taskID, callerID, assigneeID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (r *Router) handleTaskDependencies(w http.ResponseWriter, req *http.Request, taskID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	var payload struct {
		PrerequisiteID string `json:"prerequisite_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.PrerequisiteID == "" {
		writeError(w, http.StatusBadRequest, "prerequisite_id is required")
		return
	}
	dependency, err := r.task.AddDependency(req.Context(), taskID, payload.PrerequisiteID, callerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"dependent_id":    dependency.DependentID,
		"prerequisite_id": dependency.PrerequisiteID,
		"created_at":      dependency.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (r *Router) handleTaskDependencyByID(w http.ResponseWriter, req *http.Request, taskID, prerequisiteID string) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	if err := r.task.RemoveDependency(req.Context(), taskID, prerequisiteID, callerID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
