package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
)

const teamColumns = `id, name, slug, description, owner_id, default_task_priority, is_active, created_at, updated_at`

// CreateTeam creates a team record.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	const query = `INSERT INTO teams (id, name, slug, description, owner_id, default_task_priority, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err := r.pool.Exec(ctx, query,
		team.ID,
		team.Name,
		team.Slug,
		emptyToNil(team.Description),
		team.OwnerID,
		team.DefaultTaskPriority,
		team.IsActive,
		team.CreatedAt,
	)
	return mapPgError(err)
}

// GetTeamByID returns a team by identifier.
func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	const query = `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return r.scanTeam(r.pool.QueryRow(ctx, query, teamID))
}

// UpdateTeam mutates team settings.
func (r *Repository) UpdateTeam(ctx context.Context, team *domain.Team) error {
	const query = `UPDATE teams
		SET name = $2,
			description = $3,
			default_task_priority = $4,
			is_active = $5,
			updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, query,
		team.ID,
		team.Name,
		emptyToNil(team.Description),
		team.DefaultTaskPriority,
		team.IsActive,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return mapPgError(err)
	}
	team.UpdatedAt = updatedAt
	return nil
}

// DeleteTeam removes a team; memberships, projects and tasks cascade.
func (r *Repository) DeleteTeam(ctx context.Context, teamID string) error {
	const query = `DELETE FROM teams WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, teamID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListTeamsByUser returns teams where the user holds an active membership.
func (r *Repository) ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	const query = `SELECT t.id, t.name, t.slug, t.description, t.owner_id, t.default_task_priority, t.is_active, t.created_at, t.updated_at
		FROM teams t
		INNER JOIN team_memberships m ON m.team_id = t.id
		WHERE m.user_id = $1 AND m.joined_at IS NOT NULL AND m.deleted_at IS NULL
		ORDER BY t.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		team, err := scanTeamFromRows(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, rows.Err()
}

func (r *Repository) scanTeam(row pgx.Row) (*domain.Team, error) {
	team, err := scanTeamRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

func scanTeamFromRows(rows pgx.Rows) (*domain.Team, error) {
	return scanTeamRow(rows)
}

func scanTeamRow(row pgx.Row) (*domain.Team, error) {
	var (
		team        domain.Team
		description sql.NullString
	)
	if err := row.Scan(
		&team.ID,
		&team.Name,
		&team.Slug,
		&description,
		&team.OwnerID,
		&team.DefaultTaskPriority,
		&team.IsActive,
		&team.CreatedAt,
		&team.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		team.Description = description.String
	}
	return &team, nil
}

// CreateMembership inserts a membership row.
func (r *Repository) CreateMembership(ctx context.Context, member *domain.TeamMembership) error {
	const query = `INSERT INTO team_memberships (id, team_id, user_id, role, invited_at, joined_at, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		member.ID,
		member.TeamID,
		member.UserID,
		member.Role,
		member.InvitedAt,
		timePtrToNil(member.JoinedAt),
		emptyToNil(member.InvitedBy),
	)
	return mapPgError(err)
}

// GetMembership loads a membership regardless of lifecycle state.
func (r *Repository) GetMembership(ctx context.Context, teamID, userID string) (*domain.TeamMembership, error) {
	const query = `SELECT id, team_id, user_id, role, invited_at, joined_at, invited_by, deleted_at
		FROM team_memberships WHERE team_id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, teamID, userID)
	member, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return member, nil
}

// UpdateMembership persists role and lifecycle changes.
func (r *Repository) UpdateMembership(ctx context.Context, member *domain.TeamMembership) error {
	const query = `UPDATE team_memberships
		SET role = $2,
			joined_at = $3,
			deleted_at = $4,
			invited_at = $5,
			invited_by = $6
		WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query,
		member.ID,
		member.Role,
		timePtrToNil(member.JoinedAt),
		timePtrToNil(member.DeletedAt),
		member.InvitedAt,
		emptyToNil(member.InvitedBy),
	)
	if err != nil {
		return mapPgError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListMembers returns memberships that were not soft deleted.
func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMembership, error) {
	const query = `SELECT id, team_id, user_id, role, invited_at, joined_at, invited_by, deleted_at
		FROM team_memberships
		WHERE team_id = $1 AND deleted_at IS NULL
		ORDER BY invited_at ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.TeamMembership, 0)
	for rows.Next() {
		member, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}

// CountActiveOwners counts joined, non-deleted owners of a team.
func (r *Repository) CountActiveOwners(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(1) FROM team_memberships
		WHERE team_id = $1 AND role = 'owner' AND joined_at IS NOT NULL AND deleted_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, teamID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanMembership(row pgx.Row) (*domain.TeamMembership, error) {
	var (
		member    domain.TeamMembership
		joinedAt  sql.NullTime
		invitedBy sql.NullString
		deletedAt sql.NullTime
	)
	if err := row.Scan(
		&member.ID,
		&member.TeamID,
		&member.UserID,
		&member.Role,
		&member.InvitedAt,
		&joinedAt,
		&invitedBy,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	if joinedAt.Valid {
		value := joinedAt.Time.UTC()
		member.JoinedAt = &value
	}
	if invitedBy.Valid {
		member.InvitedBy = invitedBy.String
	}
	if deletedAt.Valid {
		value := deletedAt.Time.UTC()
		member.DeletedAt = &value
	}
	return &member, nil
}
