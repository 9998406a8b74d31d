package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/service/team"
)

func (r *Router) handleTeams(w http.ResponseWriter, req *http.Request) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name                string              `json:"name"`
			Slug                string              `json:"slug"`
			Description         string              `json:"description"`
			DefaultTaskPriority domain.TaskPriority `json:"default_task_priority"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.team.Create(req.Context(), callerID, team.CreateInput{
			Name:                payload.Name,
			Slug:                payload.Slug,
			Description:         payload.Description,
			DefaultTaskPriority: payload.DefaultTaskPriority,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, teamView(created))
	case http.MethodGet:
		teams, err := r.team.List(req.Context(), callerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(teams))
		for i := range teams {
			views = append(views, teamView(&teams[i]))
		}
		writeJSON(w, http.StatusOK, views)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/teams/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 1 || parts[0] == "" {
		r.notFound(w)
		return
	}
	teamID := parts[0]
	switch {
	case len(parts) == 1:
		r.handleTeamByID(w, req, teamID)
	case len(parts) == 2 && parts[1] == "members":
		r.handleTeamMembers(w, req, teamID)
	case len(parts) == 3 && parts[1] == "members" && parts[2] == "accept":
		r.handleTeamMemberAccept(w, req, teamID)
	case len(parts) == 3 && parts[1] == "members":
		r.handleTeamMemberByID(w, req, teamID, parts[2])
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTeamByID(w http.ResponseWriter, req *http.Request, teamID string) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		found, err := r.team.Get(req.Context(), teamID, callerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		members, err := r.team.ListMembers(req.Context(), teamID, callerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		view := teamView(found)
		memberViews := make([]map[string]any, 0, len(members))
		for _, m := range members {
			memberViews = append(memberViews, memberView(m))
		}
		view["members"] = memberViews
		writeJSON(w, http.StatusOK, view)
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Name                *string              `json:"name"`
			Description         *string              `json:"description"`
			DefaultTaskPriority *domain.TaskPriority `json:"default_task_priority"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := r.team.Update(req.Context(), teamID, callerID, team.UpdateInput{
			Name:                payload.Name,
			Description:         payload.Description,
			DefaultTaskPriority: payload.DefaultTaskPriority,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, teamView(updated))
	case http.MethodDelete:
		if err := r.team.Delete(req.Context(), teamID, callerID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamMembers(w http.ResponseWriter, req *http.Request, teamID string) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		members, err := r.team.ListMembers(req.Context(), teamID, callerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(members))
		for _, m := range members {
			views = append(views, memberView(m))
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var payload struct {
			Email string          `json:"email"`
			Role  domain.TeamRole `json:"role"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		membership, err := r.team.Invite(req.Context(), teamID, callerID, payload.Email, payload.Role)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, membershipView(*membership))
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamMemberAccept(w http.ResponseWriter, req *http.Request, teamID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	membership, err := r.team.Accept(req.Context(), teamID, callerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipView(*membership))
}

func (r *Router) handleTeamMemberByID(w http.ResponseWriter, req *http.Request, teamID, memberID string) {
	callerID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Role domain.TeamRole `json:"role"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		membership, err := r.team.ChangeRole(req.Context(), teamID, callerID, memberID, payload.Role)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, membershipView(*membership))
	case http.MethodDelete:
		if err := r.team.RemoveMember(req.Context(), teamID, callerID, memberID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	default:
		r.methodNotAllowed(w)
	}
}
