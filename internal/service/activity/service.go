package activity

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
	"github.com/rafa761/task-management-api/internal/ws"
)

// Service persists and streams team activity events.
type Service struct {
	repo   repository.ActivityRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs an activity service.
func New(repo repository.ActivityRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{repo: repo, hub: hub, logger: logger}
}

// Record stores and broadcasts an activity event. Failures are logged, not
// returned: the feed must never fail the operation that produced the event.
func (s Service) Record(ctx context.Context, event domain.ActivityEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.CreatedAt = event.CreatedAt.UTC()
	if err := s.repo.InsertEvent(ctx, &event); err != nil {
		s.logger.Warn("failed to record activity event", "team_id", event.TeamID, "event_type", event.EventType, "error", err)
		return
	}
	s.broadcastEvent(event)
}

// List returns recent events for a team.
func (s Service) List(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityEvent, error) {
	return s.repo.ListEvents(ctx, teamID, limit, offset)
}

// Hub returns the websocket hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

func (s Service) broadcastEvent(event domain.ActivityEvent) {
	data, err := MarshalEvent(event)
	if err != nil {
		s.logger.Warn("failed to marshal activity payload", "error", err)
		return
	}
	s.hub.Broadcast(event.TeamID, data)
}

// MarshalEvent formats an activity event for streaming payloads.
func MarshalEvent(event domain.ActivityEvent) ([]byte, error) {
	var payload any
	if len(event.Payload) > 0 {
		payload = json.RawMessage(event.Payload)
	}
	body := map[string]any{
		"id":         event.ID,
		"team_id":    event.TeamID,
		"actor_id":   event.ActorID,
		"event_type": event.EventType,
		"subject_id": event.SubjectID,
		"payload":    payload,
		"created_at": event.CreatedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(body)
}
