package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
)

const taskColumns = `id, team_id, project_id, creator_id, title, description, status, priority, due_date, started_at, completed_at, position, estimated_hours, archived, created_at, updated_at`

// CreateTask inserts a task.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	const query = `INSERT INTO tasks (id, team_id, project_id, creator_id, title, description, status, priority, due_date, position, estimated_hours, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.TeamID,
		emptyToNil(task.ProjectID),
		task.CreatorID,
		task.Title,
		emptyToNil(task.Description),
		task.Status,
		task.Priority,
		timePtrToNil(task.DueDate),
		task.Position,
		intPtrToNil(task.EstimatedHours),
		task.Archived,
		task.CreatedAt,
	)
	return mapPgError(err)
}

// GetTaskByID fetches a task by identifier.
func (r *Repository) GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.pool.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// UpdateTask persists task mutations.
func (r *Repository) UpdateTask(ctx context.Context, task *domain.Task) error {
	const query = `UPDATE tasks
		SET project_id = $2,
			title = $3,
			description = $4,
			status = $5,
			priority = $6,
			due_date = $7,
			started_at = $8,
			completed_at = $9,
			position = $10,
			estimated_hours = $11,
			archived = $12,
			updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, query,
		task.ID,
		emptyToNil(task.ProjectID),
		task.Title,
		emptyToNil(task.Description),
		task.Status,
		task.Priority,
		timePtrToNil(task.DueDate),
		timePtrToNil(task.StartedAt),
		timePtrToNil(task.CompletedAt),
		task.Position,
		intPtrToNil(task.EstimatedHours),
		task.Archived,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return mapPgError(err)
	}
	task.UpdatedAt = updatedAt
	return nil
}

// DeleteTask removes a task; assignments and dependencies cascade.
func (r *Repository) DeleteTask(ctx context.Context, taskID string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, taskID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListTasks returns tasks matching the filter, most recent first.
func (r *Repository) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	addArg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	conditions = append(conditions, "team_id = "+addArg(filter.TeamID))
	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = "+addArg(filter.ProjectID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+addArg(filter.Status))
	}
	if filter.AssigneeID != "" {
		conditions = append(conditions, "id IN (SELECT task_id FROM task_assignments WHERE assignee_id = "+addArg(filter.AssigneeID)+")")
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = FALSE")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY position ASC, created_at DESC LIMIT ` + addArg(limit) + ` OFFSET ` + addArg(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CreateAssignment links an assignee to a task.
func (r *Repository) CreateAssignment(ctx context.Context, assignment *domain.TaskAssignment) error {
	const query = `INSERT INTO task_assignments (id, task_id, assignee_id, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		assignment.ID,
		assignment.TaskID,
		assignment.AssigneeID,
		emptyToNil(assignment.AssignedBy),
		assignment.AssignedAt,
	)
	return mapPgError(err)
}

// DeleteAssignment removes an assignee from a task.
func (r *Repository) DeleteAssignment(ctx context.Context, taskID, assigneeID string) error {
	const query = `DELETE FROM task_assignments WHERE task_id = $1 AND assignee_id = $2`
	cmdTag, err := r.pool.Exec(ctx, query, taskID, assigneeID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListAssignments returns assignments for a task.
func (r *Repository) ListAssignments(ctx context.Context, taskID string) ([]domain.TaskAssignment, error) {
	const query = `SELECT id, task_id, assignee_id, assigned_by, assigned_at
		FROM task_assignments WHERE task_id = $1 ORDER BY assigned_at ASC`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]domain.TaskAssignment, 0)
	for rows.Next() {
		var (
			a          domain.TaskAssignment
			assignedBy sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.TaskID, &a.AssigneeID, &assignedBy, &a.AssignedAt); err != nil {
			return nil, err
		}
		if assignedBy.Valid {
			a.AssignedBy = assignedBy.String
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// CreateDependency records a prerequisite edge between two tasks.
func (r *Repository) CreateDependency(ctx context.Context, dependency *domain.TaskDependency) error {
	const query = `INSERT INTO task_dependencies (id, dependent_id, prerequisite_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		dependency.ID,
		dependency.DependentID,
		dependency.PrerequisiteID,
		emptyToNil(dependency.CreatedBy),
		dependency.CreatedAt,
	)
	return mapPgError(err)
}

// DeleteDependency removes a prerequisite edge.
func (r *Repository) DeleteDependency(ctx context.Context, dependentID, prerequisiteID string) error {
	const query = `DELETE FROM task_dependencies WHERE dependent_id = $1 AND prerequisite_id = $2`
	cmdTag, err := r.pool.Exec(ctx, query, dependentID, prerequisiteID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListDependencies returns the prerequisite edges of a task.
func (r *Repository) ListDependencies(ctx context.Context, dependentID string) ([]domain.TaskDependency, error) {
	const query = `SELECT id, dependent_id, prerequisite_id, created_by, created_at
		FROM task_dependencies WHERE dependent_id = $1 ORDER BY created_at ASC`
	return r.queryDependencies(ctx, query, dependentID)
}

// ListDependencyEdges returns every dependency edge within a team.
func (r *Repository) ListDependencyEdges(ctx context.Context, teamID string) ([]domain.TaskDependency, error) {
	const query = `SELECT d.id, d.dependent_id, d.prerequisite_id, d.created_by, d.created_at
		FROM task_dependencies d
		INNER JOIN tasks t ON t.id = d.dependent_id
		WHERE t.team_id = $1`
	return r.queryDependencies(ctx, query, teamID)
}

// CountOpenPrerequisites counts incomplete prerequisites blocking a task.
func (r *Repository) CountOpenPrerequisites(ctx context.Context, taskID string) (int, error) {
	const query = `SELECT COUNT(1)
		FROM task_dependencies d
		INNER JOIN tasks p ON p.id = d.prerequisite_id
		WHERE d.dependent_id = $1 AND p.status NOT IN ('done', 'cancelled')`
	var count int
	if err := r.pool.QueryRow(ctx, query, taskID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) queryDependencies(ctx context.Context, query string, arg any) ([]domain.TaskDependency, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dependencies := make([]domain.TaskDependency, 0)
	for rows.Next() {
		var (
			d         domain.TaskDependency
			createdBy sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.DependentID, &d.PrerequisiteID, &createdBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		if createdBy.Valid {
			d.CreatedBy = createdBy.String
		}
		dependencies = append(dependencies, d)
	}
	return dependencies, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task           domain.Task
		projectID      sql.NullString
		description    sql.NullString
		dueDate        sql.NullTime
		startedAt      sql.NullTime
		completedAt    sql.NullTime
		estimatedHours sql.NullInt32
	)
	if err := row.Scan(
		&task.ID,
		&task.TeamID,
		&projectID,
		&task.CreatorID,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&startedAt,
		&completedAt,
		&task.Position,
		&estimatedHours,
		&task.Archived,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if projectID.Valid {
		task.ProjectID = projectID.String
	}
	if description.Valid {
		task.Description = description.String
	}
	if dueDate.Valid {
		value := dueDate.Time.UTC()
		task.DueDate = &value
	}
	if startedAt.Valid {
		value := startedAt.Time.UTC()
		task.StartedAt = &value
	}
	if completedAt.Valid {
		value := completedAt.Time.UTC()
		task.CompletedAt = &value
	}
	if estimatedHours.Valid {
		value := int(estimatedHours.Int32)
		task.EstimatedHours = &value
	}
	return &task, nil
}
