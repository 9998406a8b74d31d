package httpx

import (
	"encoding/json"
	"time"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/service/project"
	"github.com/rafa761/task-management-api/internal/service/team"
)

// JSON views for domain entities. Password hashes and other internals never
// cross this boundary.

func userView(u *domain.User) map[string]any {
	view := map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"full_name":  u.FullName(),
		"timezone":   u.Timezone,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
	}
	if u.LastLoginAt != nil {
		view["last_login_at"] = u.LastLoginAt.Format(time.RFC3339Nano)
	}
	return view
}

func teamView(t *domain.Team) map[string]any {
	return map[string]any{
		"id":                    t.ID,
		"name":                  t.Name,
		"slug":                  t.Slug,
		"description":           t.Description,
		"owner_id":              t.OwnerID,
		"default_task_priority": t.DefaultTaskPriority,
		"is_active":             t.IsActive,
		"created_at":            t.CreatedAt.Format(time.RFC3339Nano),
	}
}

func membershipView(m domain.TeamMembership) map[string]any {
	view := map[string]any{
		"team_id":    m.TeamID,
		"user_id":    m.UserID,
		"role":       m.Role,
		"invited_at": m.InvitedAt.Format(time.RFC3339Nano),
		"invited_by": m.InvitedBy,
		"pending":    m.IsPending(),
	}
	if m.JoinedAt != nil {
		view["joined_at"] = m.JoinedAt.Format(time.RFC3339Nano)
	}
	return view
}

func memberView(m team.Member) map[string]any {
	view := membershipView(m.Membership)
	view["email"] = m.Email
	view["full_name"] = m.FullName
	return view
}

func projectView(p *domain.Project) map[string]any {
	view := map[string]any{
		"id":          p.ID,
		"team_id":     p.TeamID,
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
		"color":       p.Color,
		"position":    p.Position,
		"created_at":  p.CreatedAt.Format(time.RFC3339Nano),
	}
	if p.StartDate != nil {
		view["start_date"] = p.StartDate.Format(time.RFC3339Nano)
	}
	if p.EndDate != nil {
		view["end_date"] = p.EndDate.Format(time.RFC3339Nano)
	}
	return view
}

func projectDetailView(d *project.Detail) map[string]any {
	view := projectView(&d.Project)
	view["stats"] = map[string]any{
		"total_tasks":        d.Stats.TotalTasks,
		"completed_tasks":    d.Stats.CompletedTasks,
		"completion_percent": d.Stats.CompletionPercent(),
	}
	return view
}

func taskView(t *domain.Task) map[string]any {
	view := map[string]any{
		"id":          t.ID,
		"team_id":     t.TeamID,
		"creator_id":  t.CreatorID,
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"priority":    t.Priority,
		"position":    t.Position,
		"archived":    t.Archived,
		"overdue":     t.IsOverdue(time.Now().UTC()),
		"created_at":  t.CreatedAt.Format(time.RFC3339Nano),
	}
	if t.ProjectID != "" {
		view["project_id"] = t.ProjectID
	}
	if t.DueDate != nil {
		view["due_date"] = t.DueDate.Format(time.RFC3339Nano)
	}
	if t.StartedAt != nil {
		view["started_at"] = t.StartedAt.Format(time.RFC3339Nano)
	}
	if t.CompletedAt != nil {
		view["completed_at"] = t.CompletedAt.Format(time.RFC3339Nano)
	}
	if t.EstimatedHours != nil {
		view["estimated_hours"] = *t.EstimatedHours
	}
	return view
}

func taskDetailView(d *domain.TaskDetail) map[string]any {
	view := taskView(&d.Task)
	view["assignee_ids"] = d.AssigneeIDs
	view["prerequisite_ids"] = d.PrerequisiteIDs
	view["blocked"] = d.Blocked
	return view
}

func eventView(e domain.ActivityEvent) map[string]any {
	var payload any
	if len(e.Payload) > 0 {
		payload = json.RawMessage(e.Payload)
	}
	return map[string]any{
		"id":         e.ID,
		"team_id":    e.TeamID,
		"actor_id":   e.ActorID,
		"event_type": e.EventType,
		"subject_id": e.SubjectID,
		"payload":    payload,
		"created_at": e.CreatedAt.Format(time.RFC3339Nano),
	}
}
