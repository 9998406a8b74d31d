package postgres

import (
	"context"
	"database/sql"

	"github.com/rafa761/task-management-api/internal/domain"
)

// InsertEvent appends an activity event to a team's feed.
func (r *Repository) InsertEvent(ctx context.Context, event *domain.ActivityEvent) error {
	const query = `INSERT INTO activity_events (team_id, actor_id, event_type, subject_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		event.TeamID,
		emptyToNil(event.ActorID),
		event.EventType,
		emptyToNil(event.SubjectID),
		bytesToNil(event.Payload),
		event.CreatedAt,
	).Scan(&event.ID)
	return mapPgError(err)
}

// ListEvents fetches recent events for a team, newest first.
func (r *Repository) ListEvents(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT id, team_id, actor_id, event_type, subject_id, payload, created_at
		FROM activity_events WHERE team_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, teamID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.ActivityEvent, 0)
	for rows.Next() {
		var (
			e         domain.ActivityEvent
			actorID   sql.NullString
			subjectID sql.NullString
			payload   []byte
		)
		if err := rows.Scan(&e.ID, &e.TeamID, &actorID, &e.EventType, &subjectID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			e.ActorID = actorID.String
		}
		if subjectID.Valid {
			e.SubjectID = subjectID.String
		}
		if len(payload) > 0 {
			e.Payload = append([]byte(nil), payload...)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
