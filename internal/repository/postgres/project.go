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

const projectColumns = `id, team_id, name, description, status, start_date, end_date, color, position, created_at, updated_at`

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, team_id, name, description, status, start_date, end_date, color, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	_, err := r.pool.Exec(ctx, query,
		project.ID,
		project.TeamID,
		project.Name,
		emptyToNil(project.Description),
		project.Status,
		timePtrToNil(project.StartDate),
		timePtrToNil(project.EndDate),
		emptyToNil(project.Color),
		project.Position,
		project.CreatedAt,
	)
	return mapPgError(err)
}

// GetProjectByID fetches project details.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	project, err := scanProject(r.pool.QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

// UpdateProject mutates project fields.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects
		SET name = $2,
			description = $3,
			status = $4,
			start_date = $5,
			end_date = $6,
			color = $7,
			position = $8,
			updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, query,
		project.ID,
		project.Name,
		emptyToNil(project.Description),
		project.Status,
		timePtrToNil(project.StartDate),
		timePtrToNil(project.EndDate),
		emptyToNil(project.Color),
		project.Position,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return mapPgError(err)
	}
	project.UpdatedAt = updatedAt
	return nil
}

// DeleteProject removes a project; tasks keep existing with project_id cleared.
func (r *Repository) DeleteProject(ctx context.Context, projectID string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, projectID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListProjectsByTeam returns projects for the provided team.
func (r *Repository) ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects
		WHERE team_id = $1 ORDER BY position ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

// GetProjectStats aggregates task completion counts for a project.
func (r *Repository) GetProjectStats(ctx context.Context, projectID string) (domain.ProjectStats, error) {
	const query = `SELECT COUNT(1), COUNT(1) FILTER (WHERE status IN ('done', 'cancelled'))
		FROM tasks WHERE project_id = $1 AND archived = FALSE`
	var stats domain.ProjectStats
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&stats.TotalTasks, &stats.CompletedTasks); err != nil {
		return domain.ProjectStats{}, err
	}
	return stats, nil
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		project     domain.Project
		description sql.NullString
		startDate   sql.NullTime
		endDate     sql.NullTime
		color       sql.NullString
	)
	if err := row.Scan(
		&project.ID,
		&project.TeamID,
		&project.Name,
		&description,
		&project.Status,
		&startDate,
		&endDate,
		&color,
		&project.Position,
		&project.CreatedAt,
		&project.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		project.Description = description.String
	}
	if startDate.Valid {
		value := startDate.Time.UTC()
		project.StartDate = &value
	}
	if endDate.Valid {
		value := endDate.Time.UTC()
		project.EndDate = &value
	}
	if color.Valid {
		project.Color = color.String
	}
	return &project, nil
}
