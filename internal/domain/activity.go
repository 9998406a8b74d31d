package domain

import (
	"encoding/json"
	"time"
)

// EventType enumerates activity feed event kinds.
type EventType string

const (
	EventTaskCreated           EventType = "task_created"
	EventTaskAssigned          EventType = "task_assigned"
	EventTaskUnassigned        EventType = "task_unassigned"
	EventTaskStatusChanged     EventType = "task_status_changed"
	EventTaskCompleted         EventType = "task_completed"
	EventTaskDeleted           EventType = "task_deleted"
	EventTeamMemberAdded       EventType = "team_member_added"
	EventTeamMemberRemoved     EventType = "team_member_removed"
	EventTeamMemberRoleChanged EventType = "team_member_role_changed"
	EventProjectCreated        EventType = "project_created"
	EventProjectStatusChanged  EventType = "project_status_changed"
	EventProjectCompleted      EventType = "project_completed"
)

// ActivityEvent is a row in a team's activity feed.
type ActivityEvent struct {
	ID        int64
	TeamID    string
	ActorID   string
	EventType EventType
	SubjectID string
	Payload   json.RawMessage
	CreatedAt time.Time
}
